package hub

import (
	"testing"

	"github.com/hansimuller/taekwon/internal/types"
)

func msg(t string) types.ServerMessage { return types.ServerMessage{Type: t} }

func TestHub_SendAndBroadcast(t *testing.T) {
	h := New()
	a := make(chan types.ServerMessage, 4)
	b := make(chan types.ServerMessage, 4)
	h.Add("a", a)
	h.Add("b", b)

	if !h.Send("a", msg("only-a")) {
		t.Fatalf("send to a failed")
	}
	h.Broadcast(msg("everyone"))

	if got := (<-a).Type; got != "only-a" {
		t.Fatalf("a: want only-a first, got %s", got)
	}
	if got := (<-a).Type; got != "everyone" {
		t.Fatalf("a: want broadcast, got %s", got)
	}
	if got := (<-b).Type; got != "everyone" {
		t.Fatalf("b: want broadcast, got %s", got)
	}
	if h.Send("ghost", msg("x")) {
		t.Fatalf("send to unknown id should fail")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New()
	slow := make(chan types.ServerMessage, 1)
	h.Add("slow", slow)

	h.Send("slow", msg("1"))
	if h.Send("slow", msg("2")) {
		t.Fatalf("send to a full outbox should fail")
	}
	if h.Has("slow") {
		t.Fatalf("slow client still registered")
	}
	if d := h.Dropped(); len(d) != 1 || d[0] != "slow" {
		t.Fatalf("want [slow] dropped, got %v", d)
	}
	if d := h.Dropped(); len(d) != 0 {
		t.Fatalf("dropped list should drain, got %v", d)
	}

	// buffered message is still delivered, then the channel reports closed
	if m, ok := <-slow; !ok || m.Type != "1" {
		t.Fatalf("want buffered message before close")
	}
	if _, ok := <-slow; ok {
		t.Fatalf("outbox should be closed")
	}
}

func TestHub_RemoveClosesOutbox(t *testing.T) {
	h := New()
	ch := make(chan types.ServerMessage, 1)
	h.Add("c", ch)
	h.Remove("c")
	h.Remove("c")

	if _, ok := <-ch; ok {
		t.Fatalf("outbox should be closed")
	}
	if h.Len() != 0 {
		t.Fatalf("want empty hub, got %d", h.Len())
	}
}
