package types

// RingState is the public, tournament-wide view of a ring.
type RingState struct {
	Index  int  `json:"index"`
	Number int  `json:"number"`
	Open   bool `json:"open"`
}

type CornerJudgeState struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Connected  bool   `json:"connected"`
	Authorised bool   `json:"authorised"`
}

// MatchConfig durations are whole seconds on the wire.
type MatchConfig struct {
	RoundTime   int  `json:"roundTime"`
	BreakTime   int  `json:"breakTime"`
	InjuryTime  int  `json:"injuryTime"`
	Rounds      int  `json:"rounds"`
	MaxScore    int  `json:"maxScore"`
	GoldenPoint bool `json:"goldenPoint"`
}

type TimerState struct {
	Value     int64 `json:"value"` // milliseconds
	Running   bool  `json:"running"`
	CountDown bool  `json:"countDown"`
}

type Score struct {
	Competitor string `json:"competitor"`
	Points     int    `json:"points"`
	JudgeID    string `json:"judgeId"`
}

type MatchSnapshot struct {
	ID               string                    `json:"id"`
	State            string                    `json:"state"`
	Round            int                       `json:"round"`
	GoldenPoint      bool                      `json:"goldenPoint"`
	Config           MatchConfig               `json:"config"`
	RoundTimer       TimerState                `json:"roundTimer"`
	InjuryTimer      TimerState                `json:"injuryTimer"`
	Judges           []string                  `json:"judges"`
	Scoreboards      map[string]map[string]int `json:"scoreboards"`
	Totals           map[string]int            `json:"totals"`
	Penalties        map[string]map[string]int `json:"penalties"`
	ScoringEnabled   bool                      `json:"scoringEnabled"`
	PenaltiesEnabled bool                      `json:"penaltiesEnabled"`
	Winner           string                    `json:"winner,omitempty"`
}

// RestoreSession replays everything a returning channel needs to rebuild its
// view. Role-specific fields are omitted for the other role.
type RestoreSession struct {
	RingStates     []RingState        `json:"ringStates"`
	RingIndex      int                `json:"ringIndex"`
	Authorised     *bool              `json:"authorised,omitempty"`
	Pending        bool               `json:"pending,omitempty"`
	ScoringEnabled bool               `json:"scoringEnabled,omitempty"`
	JPConnected    bool               `json:"jpConnected,omitempty"`
	UndoEnabled    bool               `json:"undoEnabled,omitempty"`
	SlotCount      *int               `json:"slotCount,omitempty"`
	CJStates       []CornerJudgeState `json:"cjStates,omitempty"`
	MatchConfig    *MatchConfig       `json:"matchConfig,omitempty"`
	MatchSnapshot  *MatchSnapshot     `json:"matchSnapshot,omitempty"`
}
