package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hansimuller/taekwon/internal/timer"
	"github.com/hansimuller/taekwon/pkg/types"
)

var ErrInvalidConfig = errors.New("invalid match config")

type Config struct {
	RoundTime  time.Duration
	BreakTime  time.Duration
	InjuryTime time.Duration
	Rounds     int
	MaxScore   int
	// GoldenPoint escalates a tie after the last round to a golden point
	// round instead of closing the match without a winner.
	GoldenPoint bool
}

func DefaultConfig() Config {
	return Config{
		RoundTime:   2 * time.Minute,
		BreakTime:   time.Minute,
		InjuryTime:  time.Minute,
		Rounds:      3,
		MaxScore:    5,
		GoldenPoint: true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.RoundTime <= 0:
		return fmt.Errorf("%w: round time must be positive", ErrInvalidConfig)
	case c.BreakTime <= 0:
		return fmt.Errorf("%w: break time must be positive", ErrInvalidConfig)
	case c.InjuryTime <= 0:
		return fmt.Errorf("%w: injury time must be positive", ErrInvalidConfig)
	case c.Rounds < 1:
		return fmt.Errorf("%w: at least one round is required", ErrInvalidConfig)
	case c.MaxScore < 1:
		return fmt.Errorf("%w: max score must be at least 1", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Wire() types.MatchConfig {
	return types.MatchConfig{
		RoundTime:   int(c.RoundTime / time.Second),
		BreakTime:   int(c.BreakTime / time.Second),
		InjuryTime:  int(c.InjuryTime / time.Second),
		Rounds:      c.Rounds,
		MaxScore:    c.MaxScore,
		GoldenPoint: c.GoldenPoint,
	}
}

// NewMatch returns a match waiting for its first round, with judges registered.
func NewMatch(id string, cfg Config, judges []string) State {
	s := State{
		ID:          id,
		Phase:       PhaseRoundIdle,
		Round:       1,
		Config:      cfg,
		RoundTimer:  timer.Down(cfg.RoundTime),
		InjuryTimer: timer.Down(cfg.InjuryTime),
		Judges:      []string{},
		Scoreboards: map[string]Scoreboard{},
		Undo:        map[string][]Score{},
		Penalties: map[Competitor]map[PenaltyType]int{
			Hong:  {Warning: 0, Foul: 0},
			Chong: {Warning: 0, Foul: 0},
		},
	}
	for _, id := range judges {
		if slices.Contains(s.Judges, id) {
			continue
		}
		s.Judges = append(s.Judges, id)
		s.Scoreboards[id] = Scoreboard{Hong: 0, Chong: 0}
	}
	return s
}

func (s State) clone() State {
	c := s
	c.Judges = slices.Clone(s.Judges)
	c.Scoreboards = make(map[string]Scoreboard, len(s.Scoreboards))
	for id, b := range s.Scoreboards {
		nb := make(Scoreboard, len(b))
		for k, v := range b {
			nb[k] = v
		}
		c.Scoreboards[id] = nb
	}
	c.Undo = make(map[string][]Score, len(s.Undo))
	for id, stack := range s.Undo {
		c.Undo[id] = slices.Clone(stack)
	}
	c.Penalties = make(map[Competitor]map[PenaltyType]int, len(s.Penalties))
	for comp, counts := range s.Penalties {
		nc := make(map[PenaltyType]int, len(counts))
		for k, v := range counts {
			nc[k] = v
		}
		c.Penalties[comp] = nc
	}
	return c
}

func (s State) HasJudge(id string) bool {
	return id != "" && slices.Contains(s.Judges, id)
}

func (s State) UndoEnabled(judgeID string) bool {
	return len(s.Undo[judgeID]) > 0
}

// Deduction is the point penalty for a competitor: one per foul and one per
// two warnings.
func (s State) Deduction(c Competitor) int {
	p := s.Penalties[c]
	return p[Foul] + p[Warning]/2
}

// Aggregate sums a competitor's points over every judge's card, with the
// penalty deduction applied to each card.
func (s State) Aggregate(c Competitor) int {
	cards := len(s.Scoreboards)
	if cards == 0 {
		cards = 1
	}
	total := 0
	for _, b := range s.Scoreboards {
		total += b[c]
	}
	return total - cards*s.Deduction(c)
}

// Leader returns the competitor with the strictly higher aggregate, or "" on a tie.
func (s State) Leader() Competitor {
	h, c := s.Aggregate(Hong), s.Aggregate(Chong)
	switch {
	case h > c:
		return Hong
	case c > h:
		return Chong
	}
	return ""
}

// majority returns the competitor favoured by more than half of the
// registered judges, if any.
func (s State) majority() Competitor {
	if len(s.Judges) == 0 {
		return ""
	}
	votes := map[Competitor]int{}
	for _, id := range s.Judges {
		b := s.Scoreboards[id]
		h := b[Hong] - s.Deduction(Hong)
		c := b[Chong] - s.Deduction(Chong)
		if h > c {
			votes[Hong]++
		} else if c > h {
			votes[Chong]++
		}
	}
	for _, comp := range Competitors {
		if votes[comp]*2 > len(s.Judges) {
			return comp
		}
	}
	return ""
}

// Totals is the raw point sum per competitor over every card.
func (s State) Totals() map[Competitor]int {
	t := map[Competitor]int{Hong: 0, Chong: 0}
	for _, b := range s.Scoreboards {
		for c, v := range b {
			t[c] += v
		}
	}
	return t
}

func wireTimer(t timer.Timer) types.TimerState {
	return types.TimerState{Value: t.Millis(), Running: t.Running, CountDown: t.CountDown}
}

func WireBoard(b Scoreboard) map[string]int {
	out := make(map[string]int, len(b))
	for c, v := range b {
		out[string(c)] = v
	}
	return out
}

func WireScore(sc Score) types.Score {
	return types.Score{Competitor: string(sc.Competitor), Points: sc.Points, JudgeID: sc.JudgeID}
}

func (s State) Snapshot() types.MatchSnapshot {
	snap := types.MatchSnapshot{
		ID:               s.ID,
		State:            string(s.Phase),
		Round:            s.Round,
		GoldenPoint:      s.GoldenPoint,
		Config:           s.Config.Wire(),
		RoundTimer:       wireTimer(s.RoundTimer),
		InjuryTimer:      wireTimer(s.InjuryTimer),
		Judges:           slices.Clone(s.Judges),
		Scoreboards:      make(map[string]map[string]int, len(s.Scoreboards)),
		Totals:           WireBoard(s.Totals()),
		Penalties:        make(map[string]map[string]int, len(s.Penalties)),
		ScoringEnabled:   s.Phase.ScoringEnabled(),
		PenaltiesEnabled: s.Phase.PenaltiesEnabled(),
		Winner:           string(s.Winner),
	}
	for id, b := range s.Scoreboards {
		snap.Scoreboards[id] = WireBoard(b)
	}
	for c, counts := range s.Penalties {
		m := make(map[string]int, len(counts))
		for p, v := range counts {
			m[string(p)] = v
		}
		snap.Penalties[string(c)] = m
	}
	return snap
}
