package tournament

import (
	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/types"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

func (t *Tournament) judge(u *User, msg types.ClientMessage) {
	switch msg.Type {
	case wire.EvtSelectRing:
		var p wire.SelectRing
		if !t.decode(u, msg, &p) {
			return
		}
		t.joinRing(u, p.Index)

	case wire.EvtScore:
		var p wire.ScoreRequest
		if !t.decode(u, msg, &p) {
			return
		}
		t.scoreAs(u, msg.Type, engine.Command{
			Type:       engine.CmdScore,
			JudgeID:    u.ID,
			Competitor: engine.Competitor(p.Competitor),
			Points:     p.Points,
		})

	case wire.EvtUndo:
		t.scoreAs(u, msg.Type, engine.Command{Type: engine.CmdUndo, JudgeID: u.ID})

	default:
		t.protocolError(u.ConnID, "unknown event %q for %s", msg.Type, u.Role)
	}
}

// joinRing asks ring index to admit u. A request still pending elsewhere is
// withdrawn first; a judge already seated in another ring must be removed by
// that ring's JP before it can move.
func (t *Tournament) joinRing(u *User, index int) {
	r, err := t.ring(index)
	if err != nil {
		t.reject(u, wire.EvtSelectRing, index, err)
		return
	}
	if prev := u.Ring; prev != nil && prev != r {
		if prev.isMember(u) {
			t.reject(u, wire.EvtSelectRing, index, ErrAlreadyInRing)
			return
		}
		prev.cancelPending(u)
	}
	if err := r.requestJoin(u); err != nil {
		t.reject(u, wire.EvtSelectRing, index, err)
	}
}

// scoreAs applies a scoring command on behalf of an admitted judge.
func (t *Tournament) scoreAs(u *User, action string, cmd engine.Command) {
	r := u.Ring
	if r == nil || !r.isMember(u) {
		t.reject(u, action, u.ringIndex(), ErrNotMember)
		return
	}
	if err := r.applyMatch(cmd); err != nil {
		t.reject(u, action, r.Index, err)
	}
}
