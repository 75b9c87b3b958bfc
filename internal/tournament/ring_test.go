package tournament

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/store"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

type delivery struct {
	to    string
	event string
	data  any
}

// fakeHost records what a ring asks of its owner.
type fakeHost struct {
	rings      []store.RingDoc
	users      []store.UserDoc
	sent       []delivery
	broadcasts []string
	failRing   bool
	failUser   bool
}

func (h *fakeHost) persistRing(doc store.RingDoc) error {
	if h.failRing {
		return errors.New("down")
	}
	h.rings = append(h.rings, doc)
	return nil
}

func (h *fakeHost) persistUser(u *User) error {
	if h.failUser {
		return errors.New("down")
	}
	h.users = append(h.users, u.doc())
	return nil
}

func (h *fakeHost) send(u *User, event string, data any) {
	if u == nil {
		return
	}
	h.sent = append(h.sent, delivery{to: u.ID, event: event, data: data})
}

func (h *fakeHost) broadcast(event string, data any) { h.broadcasts = append(h.broadcasts, event) }
func (h *fakeHost) record(actor, action, detail string) {}
func (h *fakeHost) matchEvents(r *Ring, events []engine.Event) {}

func (h *fakeHost) last(to string) delivery {
	for i := len(h.sent) - 1; i >= 0; i-- {
		if h.sent[i].to == to {
			return h.sent[i]
		}
	}
	return delivery{}
}

func newTestRing(h *fakeHost, slots int) *Ring {
	return newRing(h, store.RingDoc{ID: "r0", Index: 0, SlotCount: slots})
}

func cornerJudge(id string) *User {
	return &User{ID: id, Role: RoleCornerJudge, Name: id, Connected: true}
}

func TestRing_SecondOpenFails(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 2)
	a := &User{ID: "a", Role: RoleJuryPresident}
	b := &User{ID: "b", Role: RoleJuryPresident}

	require.NoError(t, r.open(a))
	assert.ErrorIs(t, r.open(b), ErrRingAlreadyOpen)

	assert.Same(t, a, r.jp)
	assert.Nil(t, b.Ring)
	assert.Len(t, h.rings, 1)
	assert.Equal(t, []string{wire.EvtRingStateChanged}, h.broadcasts)
}

func TestRing_OpenStoreFailureLeavesRingClosed(t *testing.T) {
	h := &fakeHost{failRing: true}
	r := newTestRing(h, 2)
	jp := &User{ID: "jp", Role: RoleJuryPresident}

	assert.Error(t, r.open(jp))
	assert.False(t, r.Open())
	assert.Nil(t, jp.Ring)
	assert.Empty(t, h.broadcasts)
}

func TestRing_FullNeverMutatesMembership(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 1)
	require.NoError(t, r.open(&User{ID: "jp", Role: RoleJuryPresident}))

	first := cornerJudge("cj1")
	require.NoError(t, r.requestJoin(first))
	require.NoError(t, r.authorise("cj1"))

	second := cornerJudge("cj2")
	assert.ErrorIs(t, r.requestJoin(second), ErrRingFull)
	assert.Equal(t, []*User{first}, r.judges)
	assert.Empty(t, r.pending)
	assert.Nil(t, second.Ring)
}

func TestRing_AuthoriseRechecksCapacity(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 1)
	require.NoError(t, r.open(&User{ID: "jp", Role: RoleJuryPresident}))

	a, b := cornerJudge("a"), cornerJudge("b")
	require.NoError(t, r.requestJoin(a))
	require.NoError(t, r.requestJoin(b))
	require.NoError(t, r.authorise("a"))

	assert.ErrorIs(t, r.authorise("b"), ErrRingFull)
	assert.Equal(t, delivery{to: "b", event: wire.EvtRejected, data: wire.Message{Message: "Ring full"}}, h.last("b"))
	assert.Nil(t, b.Ring)
	assert.False(t, b.Authorised)
	assert.Empty(t, r.pending)
}

func TestRing_AuthorisePersistsUserThenRing(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 2)
	require.NoError(t, r.open(&User{ID: "jp", Role: RoleJuryPresident}))
	cj := cornerJudge("cj")
	require.NoError(t, r.requestJoin(cj))
	require.NoError(t, r.authorise("cj"))

	require.Len(t, h.users, 1)
	assert.True(t, h.users[0].Authorised)
	assert.Equal(t, store.StringList{"cj"}, h.rings[len(h.rings)-1].CJIDs)
	assert.Equal(t, wire.EvtRingJoined, h.last("cj").event)
	assert.True(t, cj.Authorised)
}

func TestRing_MatchTracksJudges(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 3)
	jp := &User{ID: "jp", Role: RoleJuryPresident, MatchConfig: engine.DefaultConfig()}
	require.NoError(t, r.open(jp))
	a := cornerJudge("a")
	require.NoError(t, r.requestJoin(a))
	require.NoError(t, r.authorise("a"))

	require.NoError(t, r.createMatch("m1"))
	assert.Equal(t, []string{"a"}, r.match.Judges)

	b := cornerJudge("b")
	require.NoError(t, r.requestJoin(b))
	require.NoError(t, r.authorise("b"))
	assert.Equal(t, []string{"a", "b"}, r.match.Judges)

	require.NoError(t, r.removeCJ(a, ReasonRemoved))
	assert.Equal(t, []string{"b"}, r.match.Judges)
	assert.Equal(t, delivery{to: "a", event: wire.EvtRingLeft, data: wire.Message{Message: "Removed from ring"}}, h.last("a"))

	require.NoError(t, r.applyMatch(engine.Command{Type: engine.CmdStartState}))
	assert.ErrorIs(t, r.createMatch("m2"), ErrMatchInProgress)
	assert.ErrorIs(t, r.requestJoin(a), ErrMatchInProgress)
}

func TestRing_CloseEvictsAndRejects(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 2)
	jp := &User{ID: "jp", Role: RoleJuryPresident}
	require.NoError(t, r.open(jp))
	member, waiting := cornerJudge("m"), cornerJudge("w")
	require.NoError(t, r.requestJoin(member))
	require.NoError(t, r.authorise("m"))
	require.NoError(t, r.requestJoin(waiting))

	require.NoError(t, r.close(ReasonRingClosed))
	assert.ErrorIs(t, r.close(ReasonRingClosed), ErrRingClosed)

	assert.Equal(t, wire.EvtRingLeft, h.last("m").event)
	assert.Equal(t, wire.EvtRejected, h.last("w").event)
	assert.Nil(t, member.Ring)
	assert.False(t, member.Authorised)
	assert.Nil(t, waiting.Ring)
	assert.Nil(t, jp.Ring)
	assert.False(t, r.Open())

	closed := h.rings[len(h.rings)-1]
	assert.Empty(t, closed.JPID)
	assert.Empty(t, closed.CJIDs)
}

func TestRing_AuthoriseKeepsRequestDuringRound(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 2)
	jp := &User{ID: "jp", Role: RoleJuryPresident, MatchConfig: engine.DefaultConfig()}
	require.NoError(t, r.open(jp))
	cj := cornerJudge("cj")
	require.NoError(t, r.requestJoin(cj))
	require.NoError(t, r.createMatch("m1"))
	require.NoError(t, r.applyMatch(engine.Command{Type: engine.CmdStartState}))

	assert.ErrorIs(t, r.authorise("cj"), ErrMatchInProgress)
	assert.Equal(t, []*User{cj}, r.pending)
	assert.Empty(t, r.judges)
	assert.Same(t, r, cj.Ring)
	assert.False(t, cj.Authorised)
	assert.Empty(t, h.users)
	assert.NotContains(t, r.match.Judges, "cj")

	require.NoError(t, r.applyMatch(engine.Command{Type: engine.CmdToggleInjury}))
	assert.ErrorIs(t, r.authorise("cj"), ErrMatchInProgress)
	require.NoError(t, r.applyMatch(engine.Command{Type: engine.CmdToggleInjury}))

	require.NoError(t, r.applyMatch(engine.Command{Type: engine.CmdEndState}))
	require.NoError(t, r.authorise("cj"))
	assert.Equal(t, []*User{cj}, r.judges)
}

func TestRing_RemoveSurvivesUserWriteFailure(t *testing.T) {
	h := &fakeHost{}
	r := newTestRing(h, 2)
	require.NoError(t, r.open(&User{ID: "jp", Role: RoleJuryPresident}))
	cj := cornerJudge("cj")
	require.NoError(t, r.requestJoin(cj))
	require.NoError(t, r.authorise("cj"))

	h.failUser = true
	require.NoError(t, r.removeCJ(cj, ReasonRemoved))
	assert.Empty(t, r.judges)
	assert.Nil(t, cj.Ring)
	assert.False(t, cj.Authorised)
	assert.Empty(t, h.rings[len(h.rings)-1].CJIDs)
	assert.Equal(t, wire.EvtRingLeft, h.last("cj").event)
}
