package engine

import (
	"errors"
	"time"

	"github.com/hansimuller/taekwon/internal/timer"
)

var ErrIllegalTransition = errors.New("illegal transition")
var ErrScoringDisabled = errors.New("scoring disabled")
var ErrPenaltiesDisabled = errors.New("penalties disabled")
var ErrUnknownJudge = errors.New("judge not registered on match")
var ErrInvalidCompetitor = errors.New("invalid competitor")
var ErrInvalidPoints = errors.New("invalid points")
var ErrInvalidPenalty = errors.New("invalid penalty type")
var ErrNothingToUndo = errors.New("nothing to undo")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Competitor string

const (
	Hong  Competitor = "hong"
	Chong Competitor = "chong"
)

var Competitors = []Competitor{Hong, Chong}

func (c Competitor) Valid() bool { return c == Hong || c == Chong }

type PenaltyType string

const (
	Warning PenaltyType = "warning"
	Foul    PenaltyType = "foul"
)

func (p PenaltyType) Valid() bool { return p == Warning || p == Foul }

type Phase string

const (
	PhaseRoundIdle    Phase = "ROUND_IDLE"
	PhaseRoundStarted Phase = "ROUND_STARTED"
	PhaseRoundEnded   Phase = "ROUND_ENDED"
	PhaseBreakIdle    Phase = "BREAK_IDLE"
	PhaseBreakStarted Phase = "BREAK_STARTED"
	PhaseBreakEnded   Phase = "BREAK_ENDED"
	PhaseInjury       Phase = "INJURY"
	PhaseResults      Phase = "RESULTS"
	PhaseMatchEnded   Phase = "MATCH_ENDED"
)

func (p Phase) ScoringEnabled() bool { return p == PhaseRoundStarted }

func (p Phase) PenaltiesEnabled() bool { return p == PhaseRoundStarted || p == PhaseInjury }

// InProgress reports whether a bout is live. Judges cannot be admitted and the
// match cannot be replaced while it is.
func (p Phase) InProgress() bool { return p == PhaseRoundStarted || p == PhaseInjury }

func (p Phase) Terminal() bool { return p == PhaseResults || p == PhaseMatchEnded }

type Score struct {
	Competitor Competitor
	Points     int
	JudgeID    string
}

type Scoreboard map[Competitor]int

type State struct {
	ID    string
	Phase Phase
	Round int
	// GoldenPoint marks the current (or next, while in a break) round as a
	// tie-breaker with an open-ended count-up clock.
	GoldenPoint bool
	Config      Config
	// RoundTimer also runs the break countdown.
	RoundTimer  timer.Timer
	InjuryTimer timer.Timer
	Judges      []string
	Scoreboards map[string]Scoreboard
	Undo        map[string][]Score
	Penalties   map[Competitor]map[PenaltyType]int
	Winner      Competitor
}

type CommandType string

const (
	CmdStartState       CommandType = "startMatchState"
	CmdEndState         CommandType = "endMatchState"
	CmdToggleInjury     CommandType = "toggleInjury"
	CmdContinueMatch    CommandType = "continueMatch"
	CmdEndMatch         CommandType = "endMatch"
	CmdScore            CommandType = "score"
	CmdUndo             CommandType = "undo"
	CmdIncrementPenalty CommandType = "incrementPenalty"
	CmdDecrementPenalty CommandType = "decrementPenalty"
	CmdTick             CommandType = "tick"
	CmdAddJudge         CommandType = "addJudge"
	CmdRemoveJudge      CommandType = "removeJudge"
)

/*
	ROUND_IDLE    -startMatchState->  ROUND_STARTED
	ROUND_STARTED -endMatchState | roundTimeout | goldenPointDecided-> ROUND_ENDED -resolveRound-> BREAK_IDLE | RESULTS
	BREAK_IDLE    -startMatchState->  BREAK_STARTED
	BREAK_STARTED -endMatchState | breakTimeout-> BREAK_ENDED -resolveBreak-> ROUND_IDLE (round+1)
	ROUND_STARTED <-toggleInjury->    INJURY
	RESULTS       -continueMatch->    BREAK_IDLE (golden point next)
	RESULTS | ROUND_IDLE | BREAK_IDLE | BREAK_STARTED -endMatch-> MATCH_ENDED
*/

const (
	TransRoundTimeout       = "roundTimeout"
	TransBreakTimeout       = "breakTimeout"
	TransGoldenPointDecided = "goldenPointDecided"
	TransResolveRound       = "resolveRound"
	TransResolveBreak       = "resolveBreak"
)

const (
	TimerRound  = "round"
	TimerInjury = "injury"
)

type Command struct {
	Type       CommandType
	JudgeID    string
	Competitor Competitor
	Points     int
	Penalty    PenaltyType
	Step       time.Duration
}

type EventType string

const (
	EvtStateChanged   EventType = "StateChanged"
	EvtScored         EventType = "Scored"
	EvtUndid          EventType = "Undid"
	EvtPenaltyChanged EventType = "PenaltyChanged"
	EvtTimerTick      EventType = "TimerTick"
	EvtScoringChanged EventType = "ScoringChanged"
	EvtJudgeAdded     EventType = "JudgeAdded"
	EvtJudgeRemoved   EventType = "JudgeRemoved"
)

type Event struct {
	Type       EventType
	Transition string
	From       Phase
	To         Phase
	Score      Score
	JudgeID    string
	Competitor Competitor
	Penalty    PenaltyType
	Value      int
	Timer      string
	Remaining  time.Duration
	Enabled    bool
}

// Apply runs cmd against s. On error the original state is returned untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	ns := s.clone()

	var events []Event
	var err error

	switch cmd.Type {
	case CmdStartState:
		events, err = ns.start()
	case CmdEndState:
		switch ns.Phase {
		case PhaseRoundStarted:
			events = ns.endRound(string(CmdEndState))
		case PhaseBreakStarted:
			events = ns.endBreak(string(CmdEndState))
		default:
			err = ErrIllegalTransition
		}
	case CmdToggleInjury:
		events, err = ns.toggleInjury()
	case CmdContinueMatch:
		if ns.Phase != PhaseResults {
			err = ErrIllegalTransition
			break
		}
		ns.Winner = ""
		ns.enterGoldenPoint()
		events = []Event{ns.moveTo(string(CmdContinueMatch), PhaseBreakIdle)}
	case CmdEndMatch:
		switch ns.Phase {
		case PhaseResults:
		case PhaseRoundIdle, PhaseBreakIdle, PhaseBreakStarted:
			// Early finish (knockout, withdrawal): decide on the tallies so far.
			ns.RoundTimer.Stop()
			ns.Winner = ns.Leader()
		default:
			err = ErrIllegalTransition
		}
		if err == nil {
			events = []Event{ns.moveTo(string(CmdEndMatch), PhaseMatchEnded)}
		}
	case CmdScore:
		events, err = ns.score(cmd)
	case CmdUndo:
		events, err = ns.undo(cmd.JudgeID)
	case CmdIncrementPenalty, CmdDecrementPenalty:
		events, err = ns.penalty(cmd)
	case CmdTick:
		events = ns.tick(cmd.Step)
	case CmdAddJudge:
		if ns.HasJudge(cmd.JudgeID) {
			break
		}
		ns.Judges = append(ns.Judges, cmd.JudgeID)
		if _, ok := ns.Scoreboards[cmd.JudgeID]; !ok {
			ns.Scoreboards[cmd.JudgeID] = Scoreboard{Hong: 0, Chong: 0}
		}
		events = []Event{{Type: EvtJudgeAdded, JudgeID: cmd.JudgeID}}
	case CmdRemoveJudge:
		if !ns.HasJudge(cmd.JudgeID) {
			break
		}
		// The scoreboard stays: points already awarded still count.
		judges := ns.Judges[:0]
		for _, id := range ns.Judges {
			if id != cmd.JudgeID {
				judges = append(judges, id)
			}
		}
		ns.Judges = judges
		delete(ns.Undo, cmd.JudgeID)
		events = []Event{{Type: EvtJudgeRemoved, JudgeID: cmd.JudgeID}}
	default:
		err = ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, ns, nil
}

func (s *State) moveTo(transition string, to Phase) Event {
	from := s.Phase
	s.Phase = to
	return Event{Type: EvtStateChanged, Transition: transition, From: from, To: to}
}

func scoringChanged(enabled bool) Event {
	return Event{Type: EvtScoringChanged, Enabled: enabled}
}

func (s *State) start() ([]Event, error) {
	switch s.Phase {
	case PhaseRoundIdle:
		s.RoundTimer = s.freshRoundTimer()
		s.RoundTimer.Start()
		return []Event{s.moveTo(string(CmdStartState), PhaseRoundStarted), scoringChanged(true)}, nil
	case PhaseBreakIdle:
		s.RoundTimer = timer.Down(s.Config.BreakTime)
		s.RoundTimer.Start()
		return []Event{s.moveTo(string(CmdStartState), PhaseBreakStarted)}, nil
	}
	return nil, ErrIllegalTransition
}

func (s *State) freshRoundTimer() timer.Timer {
	if s.GoldenPoint {
		return timer.Up()
	}
	return timer.Down(s.Config.RoundTime)
}

func (s *State) endRound(transition string) []Event {
	s.RoundTimer.Stop()
	for id := range s.Undo {
		s.Undo[id] = nil
	}
	events := []Event{s.moveTo(transition, PhaseRoundEnded), scoringChanged(false)}
	return append(events, s.resolveRound())
}

func (s *State) resolveRound() Event {
	switch {
	case s.GoldenPoint:
		s.Winner = s.majority()
		if s.Winner == "" {
			s.Winner = s.Leader()
		}
		return s.moveTo(TransResolveRound, PhaseResults)
	case s.Round < s.Config.Rounds:
		return s.moveTo(TransResolveRound, PhaseBreakIdle)
	}

	winner := s.Leader()
	if winner == "" && s.Config.GoldenPoint {
		s.enterGoldenPoint()
		return s.moveTo(TransResolveRound, PhaseBreakIdle)
	}
	s.Winner = winner
	return s.moveTo(TransResolveRound, PhaseResults)
}

// enterGoldenPoint schedules a tie-breaker round. It starts from a clean
// slate: scores and penalties of the regular rounds no longer count.
func (s *State) enterGoldenPoint() {
	s.GoldenPoint = true
	for id := range s.Scoreboards {
		s.Scoreboards[id] = Scoreboard{Hong: 0, Chong: 0}
	}
	for _, c := range Competitors {
		s.Penalties[c] = map[PenaltyType]int{Warning: 0, Foul: 0}
	}
}

func (s *State) endBreak(transition string) []Event {
	s.RoundTimer.Stop()
	events := []Event{s.moveTo(transition, PhaseBreakEnded)}
	s.Round++
	s.RoundTimer = s.freshRoundTimer()
	return append(events, s.moveTo(TransResolveBreak, PhaseRoundIdle))
}

func (s *State) toggleInjury() ([]Event, error) {
	switch s.Phase {
	case PhaseRoundStarted:
		s.RoundTimer.Stop()
		s.InjuryTimer = timer.Down(s.Config.InjuryTime)
		s.InjuryTimer.Start()
		return []Event{s.moveTo(string(CmdToggleInjury), PhaseInjury), scoringChanged(false)}, nil
	case PhaseInjury:
		s.InjuryTimer.Stop()
		s.RoundTimer.Start()
		return []Event{s.moveTo(string(CmdToggleInjury), PhaseRoundStarted), scoringChanged(true)}, nil
	}
	return nil, ErrIllegalTransition
}

func (s *State) score(cmd Command) ([]Event, error) {
	if !s.Phase.ScoringEnabled() {
		return nil, ErrScoringDisabled
	}
	if !s.HasJudge(cmd.JudgeID) {
		return nil, ErrUnknownJudge
	}
	if !cmd.Competitor.Valid() {
		return nil, ErrInvalidCompetitor
	}
	if cmd.Points < 1 || cmd.Points > s.Config.MaxScore {
		return nil, ErrInvalidPoints
	}

	sc := Score{Competitor: cmd.Competitor, Points: cmd.Points, JudgeID: cmd.JudgeID}
	s.Scoreboards[cmd.JudgeID][cmd.Competitor] += cmd.Points
	s.Undo[cmd.JudgeID] = append(s.Undo[cmd.JudgeID], sc)

	events := []Event{{Type: EvtScored, Score: sc, JudgeID: cmd.JudgeID}}
	if s.GoldenPoint && s.majority() != "" {
		events = append(events, s.endRound(TransGoldenPointDecided)...)
	}
	return events, nil
}

func (s *State) undo(judgeID string) ([]Event, error) {
	stack := s.Undo[judgeID]
	if len(stack) == 0 {
		return nil, ErrNothingToUndo
	}
	last := stack[len(stack)-1]
	s.Undo[judgeID] = stack[:len(stack)-1]
	s.Scoreboards[judgeID][last.Competitor] -= last.Points
	return []Event{{Type: EvtUndid, Score: last, JudgeID: judgeID}}, nil
}

func (s *State) penalty(cmd Command) ([]Event, error) {
	if !s.Phase.PenaltiesEnabled() {
		return nil, ErrPenaltiesDisabled
	}
	if !cmd.Penalty.Valid() {
		return nil, ErrInvalidPenalty
	}
	if !cmd.Competitor.Valid() {
		return nil, ErrInvalidCompetitor
	}

	counts := s.Penalties[cmd.Competitor]
	v := counts[cmd.Penalty]
	if cmd.Type == CmdIncrementPenalty {
		v++
	} else {
		if v == 0 {
			return nil, nil
		}
		v--
	}
	counts[cmd.Penalty] = v
	return []Event{{Type: EvtPenaltyChanged, Competitor: cmd.Competitor, Penalty: cmd.Penalty, Value: v}}, nil
}

func (s *State) tick(step time.Duration) []Event {
	switch s.Phase {
	case PhaseRoundStarted:
		expired := s.RoundTimer.Advance(step)
		events := []Event{{Type: EvtTimerTick, Timer: TimerRound, Remaining: s.RoundTimer.Value}}
		if expired {
			events = append(events, s.endRound(TransRoundTimeout)...)
		}
		return events
	case PhaseBreakStarted:
		expired := s.RoundTimer.Advance(step)
		events := []Event{{Type: EvtTimerTick, Timer: TimerRound, Remaining: s.RoundTimer.Value}}
		if expired {
			events = append(events, s.endBreak(TransBreakTimeout)...)
		}
		return events
	case PhaseInjury:
		// The injury countdown holds at zero until the JP resumes the round.
		if !s.InjuryTimer.Running {
			return nil
		}
		s.InjuryTimer.Advance(step)
		return []Event{{Type: EvtTimerTick, Timer: TimerInjury, Remaining: s.InjuryTimer.Value}}
	}
	return nil
}
