package tournament

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/types"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

const (
	reasonIncorrectPassword = "Incorrect password"
	reasonNameRequired      = "Name is required"
	reasonSessionOpen       = "Session already open"
)

func (t *Tournament) connect(msg Connect) {
	if msg.ConnID == "" || msg.SessionID == "" {
		close(msg.Outbox)
		return
	}
	c := &conn{id: msg.ConnID, sessionID: msg.SessionID}
	t.conns[c.id] = c
	t.hub.Add(c.id, msg.Outbox)
	t.metrics.ConnectionOpened()

	u, ok := t.users[c.sessionID]
	switch {
	case !ok:
		c.stage = stageAwaitingID
		t.sendConn(c.id, wire.EvtWaitingForID, nil)
	case u.Connected:
		t.conflict(c)
	default:
		c.stage = stageAwaitingConfirmation
		t.sendConn(c.id, wire.EvtConfirmIdentity, nil)
	}
}

// conflict refuses a second channel for a session that already has a live
// one. The first channel is left untouched.
func (t *Tournament) conflict(c *conn) {
	t.log.Warn("session already open", zap.String("session", c.sessionID), zap.String("conn", c.id))
	t.sendConn(c.id, wire.EvtWSError, wire.Reason{Reason: reasonSessionOpen})
	t.closeConn(c.id)
}

// closeConn forgets a channel and closes its outbox, which makes the writer
// hang up once it has flushed what is queued.
func (t *Tournament) closeConn(id string) {
	if _, ok := t.conns[id]; !ok {
		return
	}
	delete(t.conns, id)
	t.hub.Remove(id)
	t.metrics.ConnectionClosed()
}

func (t *Tournament) disconnect(connID string) {
	c, ok := t.conns[connID]
	if !ok {
		return
	}
	t.closeConn(connID)
	if c.stage != stageBound {
		return
	}

	u := t.users[c.sessionID]
	if u == nil || u.ConnID != connID {
		return
	}
	u.ConnID = ""
	u.Connected = false
	t.log.Info("user disconnected", zap.String("user", u.ID), zap.String("role", string(u.Role)))

	if r := u.Ring; r != nil && r.isPending(u) {
		r.cancelPending(u)
		return
	}
	t.notifyPresence(u)
}

// notifyPresence relays u's connection state to the other side of its ring.
func (t *Tournament) notifyPresence(u *User) {
	r := u.Ring
	if r == nil {
		return
	}
	switch u.Role {
	case RoleJuryPresident:
		for _, cj := range r.judges {
			t.send(cj, wire.EvtJuryPresidentStateChanged, wire.JuryPresidentState{Connected: u.Connected})
		}
	case RoleCornerJudge:
		if r.isMember(u) {
			t.send(r.jp, wire.EvtCornerJudgeStateChanged, u.judgeState())
		}
	}
}

func (t *Tournament) handle(msg FromClient) {
	c, ok := t.conns[msg.ConnID]
	if !ok {
		return
	}
	switch c.stage {
	case stageAwaitingID:
		switch msg.Message.Type {
		case wire.EvtJuryPresident:
			t.identifyJP(c, msg.Message)
		case wire.EvtCornerJudge:
			t.identifyCJ(c, msg.Message)
		default:
			t.protocolError(c.id, "%q not allowed before identification", msg.Message.Type)
		}

	case stageAwaitingConfirmation:
		if msg.Message.Type != wire.EvtIdentityConfirmation {
			t.protocolError(c.id, "%q not allowed before identity confirmation", msg.Message.Type)
			return
		}
		t.confirmIdentity(c, msg.Message)

	case stageBound:
		u := t.users[c.sessionID]
		if u == nil || u.ConnID != c.id {
			t.log.Error("bound channel without user", zap.String("conn", c.id), zap.String("session", c.sessionID))
			t.closeConn(c.id)
			return
		}
		switch u.Role {
		case RoleJuryPresident:
			t.jury(u, msg.Message)
		case RoleCornerJudge:
			t.judge(u, msg.Message)
		}
	}
}

func (t *Tournament) identifyJP(c *conn, msg types.ClientMessage) {
	var p wire.JuryPresidentID
	if err := msg.Decode(&p); err != nil {
		t.protocolError(c.id, "invalid %s payload: %v", msg.Type, err)
		return
	}
	if _, taken := t.users[c.sessionID]; taken {
		t.conflict(c)
		return
	}
	if t.secret == nil || !t.secret.Verify(p.Password) {
		t.metrics.Identified(string(RoleJuryPresident), "rejected")
		t.sendConn(c.id, wire.EvtIDFail, wire.Reason{Reason: reasonIncorrectPassword})
		return
	}
	t.admit(c, &User{ID: c.sessionID, Role: RoleJuryPresident, MatchConfig: t.opts.Match})
}

func (t *Tournament) identifyCJ(c *conn, msg types.ClientMessage) {
	var p wire.CornerJudgeID
	if err := msg.Decode(&p); err != nil {
		t.protocolError(c.id, "invalid %s payload: %v", msg.Type, err)
		return
	}
	if _, taken := t.users[c.sessionID]; taken {
		t.conflict(c)
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		t.metrics.Identified(string(RoleCornerJudge), "rejected")
		t.sendConn(c.id, wire.EvtIDFail, wire.Reason{Reason: reasonNameRequired})
		return
	}
	t.admit(c, &User{ID: c.sessionID, Role: RoleCornerJudge, Name: name})
}

// admit persists a newly identified user, registers it and binds it to c.
func (t *Tournament) admit(c *conn, u *User) {
	if err := t.registerUser(u); err != nil {
		t.metrics.Identified(string(u.Role), "error")
		t.sendConn(c.id, wire.EvtIDFail, wire.Reason{Reason: ErrStore.Error()})
		return
	}
	t.bind(c, u)
	t.metrics.Identified(string(u.Role), "accepted")
	t.record(u.ID, "identified", string(u.Role))
	t.log.Info("user identified", zap.String("user", u.ID), zap.String("role", string(u.Role)), zap.String("name", u.Name))

	t.sendConn(c.id, wire.EvtIDSuccess, nil)
	t.sendConn(c.id, wire.EvtRingStates, t.ringStates())
}

// registerUser writes the user document, then the tournament's user list.
// The user joins the registry only once both have settled.
func (t *Tournament) registerUser(u *User) error {
	if err := t.persistUser(u); err != nil {
		return err
	}
	ids := slices.Clone([]string(t.doc.UserIDs))
	if !slices.Contains(ids, u.ID) {
		ids = append(ids, u.ID)
	}
	if err := t.persistUserIDs(ids); err != nil {
		return err
	}
	t.users[u.ID] = u
	return nil
}

func (t *Tournament) bind(c *conn, u *User) {
	c.stage = stageBound
	u.ConnID = c.id
	u.Connected = true
}

func (t *Tournament) confirmIdentity(c *conn, msg types.ClientMessage) {
	var p wire.IdentityConfirmation
	if err := msg.Decode(&p); err != nil {
		t.protocolError(c.id, "invalid %s payload: %v", msg.Type, err)
		return
	}
	role := Role(p.Identity)
	if !role.Valid() {
		t.protocolError(c.id, "unknown identity %q", p.Identity)
		return
	}

	u := t.users[c.sessionID]
	switch {
	case u == nil:
		// The user exited through another channel in the meantime.
		c.stage = stageAwaitingID
		t.sendConn(c.id, wire.EvtWaitingForID, nil)
		return
	case u.Connected:
		t.conflict(c)
		return
	}

	if u.Role != role {
		if err := t.exitUser(u); err != nil {
			t.sendConn(c.id, wire.EvtActionRejected, wire.ActionRejected{Action: msg.Type, Reason: ErrStore.Error()})
			return
		}
		c.stage = stageAwaitingID
		t.sendConn(c.id, wire.EvtWaitingForID, nil)
		return
	}

	t.bind(c, u)
	t.record(u.ID, "restored", string(u.Role))
	t.log.Info("session restored", zap.String("user", u.ID), zap.String("role", string(u.Role)), zap.Int("ring", u.ringIndex()))
	t.sendConn(c.id, wire.EvtRestoreSession, t.restorePayload(u))
	if u.Role == RoleJuryPresident && u.Ring != nil {
		for _, cj := range u.Ring.pending {
			t.send(u, wire.EvtNewCornerJudge, cj.judgeState())
		}
	}
	t.notifyPresence(u)
}

func (t *Tournament) restorePayload(u *User) wire.RestoreSession {
	rs := wire.RestoreSession{RingStates: t.ringStates(), RingIndex: u.ringIndex()}
	r := u.Ring

	switch u.Role {
	case RoleJuryPresident:
		cfg := u.MatchConfig.Wire()
		rs.MatchConfig = &cfg
		if r != nil {
			slots := r.SlotCount
			rs.SlotCount = &slots
			rs.CJStates = r.judgeStates()
		}
	case RoleCornerJudge:
		authorised := u.Authorised
		rs.Authorised = &authorised
		if r != nil {
			rs.Pending = r.isPending(u)
			rs.ScoringEnabled = r.scoringEnabled()
			rs.JPConnected = r.jpConnected()
		}
	}

	if r != nil && r.match != nil && (u.Role == RoleJuryPresident || r.isMember(u)) {
		snap := r.match.Snapshot()
		rs.MatchSnapshot = &snap
		if u.Role == RoleCornerJudge {
			rs.UndoEnabled = r.match.UndoEnabled(u.ID)
		}
	}
	return rs
}

// exitUser removes u from the system: its ring is closed (JP) or left (CJ),
// and it is dropped from the registry and the tournament document.
func (t *Tournament) exitUser(u *User) error {
	if r := u.Ring; r != nil {
		switch {
		case u.Role == RoleJuryPresident:
			if err := r.close(ReasonRingClosed); err != nil {
				return err
			}
			t.metrics.SetOpenRings(t.openRings())
		case r.isPending(u):
			r.cancelPending(u)
		case r.isMember(u):
			if err := r.removeCJ(u, ReasonExited); err != nil {
				return err
			}
		}
	}

	ids := slices.DeleteFunc(slices.Clone([]string(t.doc.UserIDs)), func(id string) bool { return id == u.ID })
	if err := t.persistUserIDs(ids); err != nil {
		return err
	}
	delete(t.users, u.ID)
	if u.ConnID != "" {
		t.closeConn(u.ConnID)
	}
	t.record(u.ID, "exited", string(u.Role))
	t.log.Info("user exited", zap.String("user", u.ID), zap.String("role", string(u.Role)))
	return nil
}
