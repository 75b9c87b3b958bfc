package tournament

import (
	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/engine"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

// matchEvents turns engine events into outbound messages for the ring's
// members. State changes go to everyone; clocks and penalties to the JP; a
// judge sees only its own card.
func (t *Tournament) matchEvents(r *Ring, events []engine.Event) {
	m := r.match
	for _, e := range events {
		switch e.Type {
		case engine.EvtStateChanged:
			t.metrics.MatchTransition(string(e.To))
			t.record(r.jp.ID, "matchStateChanged", string(e.From)+"->"+string(e.To))
			t.log.Debug("match transition",
				zap.Int("ring", r.Index),
				zap.String("match", m.ID),
				zap.String("transition", e.Transition),
				zap.String("from", string(e.From)),
				zap.String("to", string(e.To)),
			)
			msg := wire.MatchStateChanged{Transition: e.Transition, From: string(e.From), To: string(e.To), MatchSnapshot: m.Snapshot()}
			for _, u := range r.members() {
				t.send(u, wire.EvtMatchStateChanged, msg)
			}

		case engine.EvtScoringChanged:
			for _, cj := range r.judges {
				t.send(cj, wire.EvtScoringStateChanged, wire.ScoringState{Enabled: e.Enabled})
			}

		case engine.EvtTimerTick:
			t.send(r.jp, wire.EvtTimerTick, wire.TimerTick{Timer: e.Timer, Value: e.Remaining.Milliseconds()})

		case engine.EvtPenaltyChanged:
			t.send(r.jp, wire.EvtPenaltyChanged, wire.PenaltyChanged{Type: string(e.Penalty), Competitor: string(e.Competitor), Value: e.Value})

		case engine.EvtScored, engine.EvtUndid:
			event := wire.EvtScored
			if e.Type == engine.EvtUndid {
				event = wire.EvtUndid
			} else {
				t.metrics.Scored()
			}
			board := engine.WireBoard(m.Scoreboards[e.JudgeID])
			undo := m.UndoEnabled(e.JudgeID)
			t.send(r.member(e.JudgeID), event, wire.ScoreChanged{Score: engine.WireScore(e.Score), Scoreboard: board, UndoEnabled: undo})
			t.send(r.jp, event, wire.ScoreChanged{
				Score:       engine.WireScore(e.Score),
				Scoreboard:  board,
				Totals:      engine.WireBoard(m.Totals()),
				UndoEnabled: undo,
			})
		}
	}
}
