package types

// Client -> Server
const (
	EvtJuryPresident        = "juryPresident"
	EvtCornerJudge          = "cornerJudge"
	EvtIdentityConfirmation = "identityConfirmation"
	EvtSelectRing           = "selectRing"
	EvtCloseRing            = "closeRing"
	EvtAddSlot              = "addSlot"
	EvtRemoveSlot           = "removeSlot"
	EvtAuthoriseCJ          = "authoriseCJ"
	EvtRejectCJ             = "rejectCJ"
	EvtRemoveCJ             = "removeCJ"
	EvtConfigureMatch       = "configureMatch"
	EvtSetConfigItem        = "setConfigItem"
	EvtCreateMatch          = "createMatch"
	EvtContinueMatch        = "continueMatch"
	EvtEndMatch             = "endMatch"
	EvtStartMatchState      = "startMatchState"
	EvtEndMatchState        = "endMatchState"
	EvtToggleInjury         = "toggleInjury"
	EvtIncrementPenalty     = "incrementPenalty"
	EvtDecrementPenalty     = "decrementPenalty"
	EvtScore                = "score"
	EvtUndo                 = "undo"
)

// Server -> Client
const (
	EvtWaitingForID              = "waitingForId"
	EvtIDSuccess                 = "idSuccess"
	EvtIDFail                    = "idFail"
	EvtConfirmIdentity           = "confirmIdentity"
	EvtWSError                   = "wsError"
	EvtProtocolError             = "protocolError"
	EvtActionRejected            = "actionRejected"
	EvtRingStates                = "ringStates"
	EvtRingStateChanged          = "ringStateChanged"
	EvtRingOpened                = "ringOpened"
	EvtRingClosed                = "ringClosed"
	EvtRingAlreadyOpen           = "ringAlreadyOpen"
	EvtRingDoesNotExist          = "ringDoesNotExist"
	EvtRingIsFull                = "ringIsFull"
	EvtMatchInProgress           = "matchInProgress"
	EvtWaitingForAuthorisation   = "waitingForAuthorisation"
	EvtNewCornerJudge            = "newCornerJudge"
	EvtAuthorisationCancelled    = "authorisationCancelled"
	EvtCornerJudgeStateChanged   = "cornerJudgeStateChanged"
	EvtJuryPresidentStateChanged = "juryPresidentStateChanged"
	EvtRingJoined                = "ringJoined"
	EvtRingLeft                  = "ringLeft"
	EvtRejected                  = "rejected"
	EvtSlotsUpdated              = "slotsUpdated"
	EvtMatchConfig               = "matchConfig"
	EvtMatchCreated              = "matchCreated"
	EvtMatchStateChanged         = "matchStateChanged"
	EvtScoringStateChanged       = "scoringStateChanged"
	EvtTimerTick                 = "timerTick"
	EvtPenaltyChanged            = "penaltyChanged"
	EvtScored                    = "scored"
	EvtUndid                     = "undid"
	EvtRestoreSession            = "restoreSession"
)

// Identities carried by identityConfirmation and persisted on user documents.
const (
	IdentityJuryPresident = "juryPresident"
	IdentityCornerJudge   = "cornerJudge"
)

type JuryPresidentID struct {
	Password string `json:"password"`
}

type CornerJudgeID struct {
	Name string `json:"name"`
}

type IdentityConfirmation struct {
	Identity string `json:"identity"`
}

type SelectRing struct {
	Index int `json:"index"`
}

type RemoveSlot struct {
	Index int `json:"index"`
}

type JudgeRef struct {
	ID string `json:"id"`
}

type RejectCJ struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SetConfigItem.Value is decoded per key: seconds for durations, integers for
// counts, booleans for policies.
type SetConfigItem struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type Penalty struct {
	Type       string `json:"type"`
	Competitor string `json:"competitor"`
}

type ScoreRequest struct {
	Competitor string `json:"competitor"`
	Points     int    `json:"points"`
}

// Outbound payloads

type Reason struct {
	Reason string `json:"reason"`
}

type Message struct {
	Message string `json:"message"`
}

type ActionRejected struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type RingRef struct {
	Index int `json:"index"`
}

type RingJoined struct {
	Index          int  `json:"index"`
	ScoringEnabled bool `json:"scoringEnabled"`
	JPConnected    bool `json:"jpConnected"`
}

type JuryPresidentState struct {
	Connected bool `json:"connected"`
}

type SlotsUpdated struct {
	SlotCount int                `json:"slotCount"`
	CJStates  []CornerJudgeState `json:"cjStates"`
}

type ScoringState struct {
	Enabled bool `json:"enabled"`
}

type TimerTick struct {
	Timer string `json:"timer"`
	Value int64  `json:"value"` // milliseconds
}

type PenaltyChanged struct {
	Type       string `json:"type"`
	Competitor string `json:"competitor"`
	Value      int    `json:"value"`
}

type MatchStateChanged struct {
	Transition    string        `json:"transition"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	MatchSnapshot MatchSnapshot `json:"matchSnapshot"`
}

type ScoreChanged struct {
	Score       Score          `json:"score"`
	Scoreboard  map[string]int `json:"scoreboard"`
	Totals      map[string]int `json:"totals,omitempty"`
	UndoEnabled bool           `json:"undoEnabled"`
}

type MatchCreated struct {
	Match MatchSnapshot `json:"match"`
}
