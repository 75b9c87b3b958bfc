package tournament

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/types"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

var ErrInvalidConfigItem = errors.New("invalid config item")

// Match commands the JP forwards to the engine unchanged.
var juryMatchCommands = map[string]engine.CommandType{
	wire.EvtStartMatchState: engine.CmdStartState,
	wire.EvtEndMatchState:   engine.CmdEndState,
	wire.EvtToggleInjury:    engine.CmdToggleInjury,
	wire.EvtContinueMatch:   engine.CmdContinueMatch,
	wire.EvtEndMatch:        engine.CmdEndMatch,
}

func (t *Tournament) jury(u *User, msg types.ClientMessage) {
	if cmd, ok := juryMatchCommands[msg.Type]; ok {
		r, err := t.ownRing(u)
		if err == nil {
			err = r.applyMatch(engine.Command{Type: cmd})
		}
		if err != nil {
			t.reject(u, msg.Type, u.ringIndex(), err)
		}
		return
	}

	switch msg.Type {
	case wire.EvtSelectRing:
		var p wire.SelectRing
		if !t.decode(u, msg, &p) {
			return
		}
		t.openRing(u, p.Index)

	case wire.EvtCloseRing:
		r, err := t.ownRing(u)
		if err == nil {
			err = r.close(ReasonRingClosed)
		}
		if err != nil {
			t.reject(u, msg.Type, u.ringIndex(), err)
			return
		}
		t.metrics.SetOpenRings(t.openRings())
		t.send(u, wire.EvtRingClosed, wire.RingRef{Index: r.Index})

	case wire.EvtAddSlot:
		t.withRing(u, msg.Type, func(r *Ring) error { return r.addSlot() })

	case wire.EvtRemoveSlot:
		var p wire.RemoveSlot
		if !t.decode(u, msg, &p) {
			return
		}
		t.withRing(u, msg.Type, func(r *Ring) error { return r.removeSlot(p.Index) })

	case wire.EvtAuthoriseCJ:
		var p wire.JudgeRef
		if !t.decode(u, msg, &p) {
			return
		}
		t.withRing(u, msg.Type, func(r *Ring) error { return r.authorise(p.ID) })

	case wire.EvtRejectCJ:
		var p wire.RejectCJ
		if !t.decode(u, msg, &p) {
			return
		}
		t.withRing(u, msg.Type, func(r *Ring) error { return r.reject(p.ID, p.Message) })

	case wire.EvtRemoveCJ:
		var p wire.JudgeRef
		if !t.decode(u, msg, &p) {
			return
		}
		t.withRing(u, msg.Type, func(r *Ring) error {
			cj := r.member(p.ID)
			if cj == nil {
				return ErrNotMember
			}
			return r.removeCJ(cj, ReasonRemoved)
		})

	case wire.EvtConfigureMatch:
		t.send(u, wire.EvtMatchConfig, u.MatchConfig.Wire())

	case wire.EvtSetConfigItem:
		var p wire.SetConfigItem
		if !t.decode(u, msg, &p) {
			return
		}
		cfg, err := setConfigItem(u.MatchConfig, p.Key, p.Value)
		if err != nil {
			t.reject(u, msg.Type, u.ringIndex(), err)
			return
		}
		u.MatchConfig = cfg
		t.send(u, wire.EvtMatchConfig, cfg.Wire())

	case wire.EvtCreateMatch:
		t.withRing(u, msg.Type, func(r *Ring) error { return r.createMatch(t.newID()) })

	case wire.EvtIncrementPenalty, wire.EvtDecrementPenalty:
		var p wire.Penalty
		if !t.decode(u, msg, &p) {
			return
		}
		cmd := engine.Command{
			Type:       engine.CmdIncrementPenalty,
			Penalty:    engine.PenaltyType(p.Type),
			Competitor: engine.Competitor(p.Competitor),
		}
		if msg.Type == wire.EvtDecrementPenalty {
			cmd.Type = engine.CmdDecrementPenalty
		}
		t.withRing(u, msg.Type, func(r *Ring) error { return r.applyMatch(cmd) })

	default:
		t.protocolError(u.ConnID, "unknown event %q for %s", msg.Type, u.Role)
	}
}

func (t *Tournament) openRing(u *User, index int) {
	if u.Ring != nil {
		t.reject(u, wire.EvtSelectRing, index, ErrRingAlreadyOpen)
		return
	}
	r, err := t.ring(index)
	if err == nil {
		err = r.open(u)
	}
	if err != nil {
		if errors.Is(err, ErrRingAlreadyOpen) && r.jp != nil {
			t.log.Warn("second jury president refused", zap.Int("ring", index), zap.String("user", u.ID), zap.String("owner", r.jp.ID))
		}
		t.reject(u, wire.EvtSelectRing, index, err)
		return
	}
	t.metrics.SetOpenRings(t.openRings())
	t.send(u, wire.EvtRingOpened, wire.RingRef{Index: r.Index})
	t.send(u, wire.EvtSlotsUpdated, r.slots())
	t.send(u, wire.EvtMatchConfig, u.MatchConfig.Wire())
}

func (t *Tournament) ownRing(u *User) (*Ring, error) {
	if u.Ring == nil || u.Ring.jp != u {
		return nil, ErrNoRing
	}
	return u.Ring, nil
}

func (t *Tournament) withRing(u *User, action string, fn func(r *Ring) error) {
	r, err := t.ownRing(u)
	if err == nil {
		err = fn(r)
	}
	if err != nil {
		t.reject(u, action, u.ringIndex(), err)
	}
}

// decode reports payload errors as protocol errors.
func (t *Tournament) decode(u *User, msg types.ClientMessage, v any) bool {
	if err := msg.Decode(v); err != nil {
		t.protocolError(u.ConnID, "invalid %s payload: %v", msg.Type, err)
		return false
	}
	return true
}

// setConfigItem returns cfg with key set to value. Durations are whole
// seconds.
func setConfigItem(cfg engine.Config, key string, value any) (engine.Config, error) {
	switch key {
	case "roundTime", "breakTime", "injuryTime":
		n, err := positiveInt(key, value)
		if err != nil {
			return cfg, err
		}
		d := time.Duration(n) * time.Second
		switch key {
		case "roundTime":
			cfg.RoundTime = d
		case "breakTime":
			cfg.BreakTime = d
		default:
			cfg.InjuryTime = d
		}
	case "rounds":
		n, err := positiveInt(key, value)
		if err != nil {
			return cfg, err
		}
		cfg.Rounds = n
	case "maxScore":
		n, err := positiveInt(key, value)
		if err != nil {
			return cfg, err
		}
		cfg.MaxScore = n
	case "goldenPoint":
		b, ok := value.(bool)
		if !ok {
			return cfg, fmt.Errorf("%w: %s must be a boolean", ErrInvalidConfigItem, key)
		}
		cfg.GoldenPoint = b
	default:
		return cfg, fmt.Errorf("%w: unknown key %q", ErrInvalidConfigItem, key)
	}
	return cfg, cfg.Validate()
}

func positiveInt(key string, value any) (int, error) {
	f, ok := value.(float64)
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidConfigItem, key)
	}
	return int(f), nil
}
