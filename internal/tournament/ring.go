package tournament

import (
	"errors"
	"slices"

	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/store"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

var ErrRingDoesNotExist = errors.New("ring does not exist")
var ErrRingAlreadyOpen = errors.New("ring already open")
var ErrRingClosed = errors.New("ring closed")
var ErrRingFull = errors.New("ring full")
var ErrMatchInProgress = errors.New("match in progress")
var ErrNotPending = errors.New("corner judge has no pending request")
var ErrNotMember = errors.New("corner judge is not in this ring")
var ErrAlreadyInRing = errors.New("already in a ring")
var ErrNoRing = errors.New("no open ring")
var ErrNoMatch = errors.New("no match")
var ErrInvalidSlot = errors.New("invalid slot")
var ErrStore = errors.New("storage unavailable")

const (
	ReasonRingClosed   = "Ring closed"
	ReasonRemoved      = "Removed from ring"
	ReasonExited       = "Exited system"
	ReasonSlotRemoved  = "Slot removed"
	ReasonRingFull     = "Ring full"
	ReasonRejectedByJP = "Rejected by jury president"
)

// ringHost is everything a ring needs from its owner. Rings never reach the
// registry or the connections directly.
type ringHost interface {
	persistRing(doc store.RingDoc) error
	persistUser(u *User) error
	send(u *User, event string, data any)
	broadcast(event string, data any)
	record(actor, action, detail string)
	matchEvents(r *Ring, events []engine.Event)
}

type Ring struct {
	ID        string
	Index     int
	SlotCount int

	host    ringHost
	jp      *User
	judges  []*User
	pending []*User
	match   *engine.State
}

func newRing(host ringHost, doc store.RingDoc) *Ring {
	return &Ring{ID: doc.ID, Index: doc.Index, SlotCount: doc.SlotCount, host: host}
}

func (r *Ring) Open() bool { return r.jp != nil }

func (r *Ring) State() wire.RingState {
	return wire.RingState{Index: r.Index, Number: r.Index + 1, Open: r.Open()}
}

func (r *Ring) doc() store.RingDoc {
	d := store.RingDoc{ID: r.ID, Index: r.Index, SlotCount: r.SlotCount, CJIDs: store.StringList{}}
	if r.jp != nil {
		d.JPID = r.jp.ID
	}
	for _, cj := range r.judges {
		d.CJIDs = append(d.CJIDs, cj.ID)
	}
	return d
}

func (r *Ring) isMember(u *User) bool  { return slices.Contains(r.judges, u) }
func (r *Ring) isPending(u *User) bool { return slices.Contains(r.pending, u) }

func (r *Ring) member(id string) *User {
	for _, cj := range r.judges {
		if cj.ID == id {
			return cj
		}
	}
	return nil
}

func (r *Ring) pendingJudge(id string) *User {
	for _, cj := range r.pending {
		if cj.ID == id {
			return cj
		}
	}
	return nil
}

func without(users []*User, u *User) []*User {
	return slices.DeleteFunc(slices.Clone(users), func(x *User) bool { return x == u })
}

func (r *Ring) judgeStates() []wire.CornerJudgeState {
	out := make([]wire.CornerJudgeState, 0, len(r.judges))
	for _, cj := range r.judges {
		out = append(out, cj.judgeState())
	}
	return out
}

func (r *Ring) slots() wire.SlotsUpdated {
	return wire.SlotsUpdated{SlotCount: r.SlotCount, CJStates: r.judgeStates()}
}

func (r *Ring) scoringEnabled() bool {
	return r.match != nil && r.match.Phase.ScoringEnabled()
}

func (r *Ring) jpConnected() bool {
	return r.jp != nil && r.jp.Connected
}

// members are the users that see match events: the JP and admitted judges.
func (r *Ring) members() []*User {
	out := make([]*User, 0, len(r.judges)+1)
	if r.jp != nil {
		out = append(out, r.jp)
	}
	return append(out, r.judges...)
}

func (r *Ring) open(jp *User) error {
	if r.jp != nil {
		return ErrRingAlreadyOpen
	}
	doc := r.doc()
	doc.JPID = jp.ID
	if err := r.host.persistRing(doc); err != nil {
		return err
	}
	r.jp = jp
	jp.Ring = r
	r.host.record(jp.ID, "ringOpened", r.ID)
	r.host.broadcast(wire.EvtRingStateChanged, r.State())
	return nil
}

// close unbinds the JP, evicts every judge and drops the match.
func (r *Ring) close(reason string) error {
	if r.jp == nil {
		return ErrRingClosed
	}
	doc := r.doc()
	doc.JPID = ""
	doc.CJIDs = store.StringList{}
	if err := r.host.persistRing(doc); err != nil {
		return err
	}

	for _, cj := range r.judges {
		cj.Ring = nil
		cj.Authorised = false
		// The ring document is authoritative for membership; a stale flag
		// on the user is corrected at restore.
		_ = r.host.persistUser(cj)
		r.host.send(cj, wire.EvtRingLeft, wire.Message{Message: reason})
	}
	for _, cj := range r.pending {
		cj.Ring = nil
		r.host.send(cj, wire.EvtRejected, wire.Message{Message: reason})
	}

	jp := r.jp
	jp.Ring = nil
	r.jp = nil
	r.judges = nil
	r.pending = nil
	r.match = nil
	r.host.record(jp.ID, "ringClosed", r.ID)
	r.host.broadcast(wire.EvtRingStateChanged, r.State())
	return nil
}

// requestJoin puts cj in the pending queue and asks the JP to authorise it.
func (r *Ring) requestJoin(cj *User) error {
	if r.jp == nil {
		return ErrRingClosed
	}
	if r.isMember(cj) {
		r.host.send(cj, wire.EvtRingJoined, r.joined())
		return nil
	}
	if r.isPending(cj) {
		r.host.send(cj, wire.EvtWaitingForAuthorisation, wire.RingRef{Index: r.Index})
		return nil
	}
	if len(r.judges) >= r.SlotCount {
		return ErrRingFull
	}
	if r.match != nil && r.match.Phase.InProgress() {
		return ErrMatchInProgress
	}

	r.pending = append(r.pending, cj)
	cj.Ring = r
	r.host.send(r.jp, wire.EvtNewCornerJudge, cj.judgeState())
	r.host.send(cj, wire.EvtWaitingForAuthorisation, wire.RingRef{Index: r.Index})
	return nil
}

func (r *Ring) joined() wire.RingJoined {
	return wire.RingJoined{Index: r.Index, ScoringEnabled: r.scoringEnabled(), JPConnected: r.jpConnected()}
}

func (r *Ring) authorise(id string) error {
	cj := r.pendingJudge(id)
	if cj == nil {
		return ErrNotPending
	}
	// The request stays queued until the next break.
	if r.match != nil && r.match.Phase.InProgress() {
		return ErrMatchInProgress
	}
	if len(r.judges) >= r.SlotCount {
		r.pending = without(r.pending, cj)
		cj.Ring = nil
		r.host.send(cj, wire.EvtRejected, wire.Message{Message: ReasonRingFull})
		return ErrRingFull
	}

	// User first: if the ring write then fails, restore sees a judge that
	// belongs to no ring and clears the flag.
	cj.Authorised = true
	if err := r.host.persistUser(cj); err != nil {
		cj.Authorised = false
		return err
	}
	doc := r.doc()
	doc.CJIDs = append(doc.CJIDs, cj.ID)
	if err := r.host.persistRing(doc); err != nil {
		cj.Authorised = false
		return err
	}

	r.pending = without(r.pending, cj)
	r.judges = append(r.judges, cj)
	if r.match != nil {
		r.applyMatch(engine.Command{Type: engine.CmdAddJudge, JudgeID: cj.ID})
	}
	r.host.record(r.jp.ID, "cjAuthorised", cj.ID)
	r.host.send(cj, wire.EvtRingJoined, r.joined())
	r.host.send(r.jp, wire.EvtSlotsUpdated, r.slots())
	return nil
}

func (r *Ring) reject(id, message string) error {
	cj := r.pendingJudge(id)
	if cj == nil {
		return ErrNotPending
	}
	if message == "" {
		message = ReasonRejectedByJP
	}
	r.pending = without(r.pending, cj)
	cj.Ring = nil
	r.host.send(cj, wire.EvtRejected, wire.Message{Message: message})
	return nil
}

// cancelPending drops a join request whose judge went away.
func (r *Ring) cancelPending(cj *User) {
	if !r.isPending(cj) {
		return
	}
	r.pending = without(r.pending, cj)
	cj.Ring = nil
	r.host.send(r.jp, wire.EvtAuthorisationCancelled, wire.JudgeRef{ID: cj.ID})
}

// removeCJ takes an admitted judge out of the ring, whatever the trigger.
func (r *Ring) removeCJ(cj *User, reason string) error {
	if !r.isMember(cj) {
		return ErrNotMember
	}
	doc := r.doc()
	doc.CJIDs = slices.DeleteFunc(doc.CJIDs, func(id string) bool { return id == cj.ID })
	if err := r.host.persistRing(doc); err != nil {
		return err
	}

	r.judges = without(r.judges, cj)
	cj.Ring = nil
	cj.Authorised = false
	// The ring document is authoritative; restore clears a stale flag.
	_ = r.host.persistUser(cj)
	if r.match != nil {
		r.applyMatch(engine.Command{Type: engine.CmdRemoveJudge, JudgeID: cj.ID})
	}
	r.host.record(cj.ID, "cjRemoved", reason)
	r.host.send(cj, wire.EvtRingLeft, wire.Message{Message: reason})
	r.host.send(r.jp, wire.EvtSlotsUpdated, r.slots())
	return nil
}

func (r *Ring) addSlot() error {
	doc := r.doc()
	doc.SlotCount++
	if err := r.host.persistRing(doc); err != nil {
		return err
	}
	r.SlotCount++
	r.host.send(r.jp, wire.EvtSlotsUpdated, r.slots())
	return nil
}

// removeSlot shrinks the ring by one slot, evicting the judge seated there.
func (r *Ring) removeSlot(index int) error {
	if r.SlotCount <= 1 || index < 0 || index >= r.SlotCount {
		return ErrInvalidSlot
	}
	if index < len(r.judges) {
		if err := r.removeCJ(r.judges[index], ReasonSlotRemoved); err != nil {
			return err
		}
	}
	doc := r.doc()
	doc.SlotCount--
	if err := r.host.persistRing(doc); err != nil {
		return err
	}
	r.SlotCount--
	r.host.send(r.jp, wire.EvtSlotsUpdated, r.slots())
	return nil
}

// createMatch replaces the ring's match with a fresh one built from the JP's
// configuration.
func (r *Ring) createMatch(id string) error {
	if r.jp == nil {
		return ErrRingClosed
	}
	if r.match != nil && r.match.Phase.InProgress() {
		return ErrMatchInProgress
	}
	ids := make([]string, 0, len(r.judges))
	for _, cj := range r.judges {
		ids = append(ids, cj.ID)
	}
	m := engine.NewMatch(id, r.jp.MatchConfig, ids)
	r.match = &m
	r.host.record(r.jp.ID, "matchCreated", id)

	created := wire.MatchCreated{Match: m.Snapshot()}
	for _, u := range r.members() {
		r.host.send(u, wire.EvtMatchCreated, created)
	}
	return nil
}

func (r *Ring) applyMatch(cmd engine.Command) error {
	if r.match == nil {
		return ErrNoMatch
	}
	events, next, err := engine.Apply(*r.match, cmd)
	if err != nil {
		return err
	}
	r.match = &next
	if len(events) > 0 {
		r.host.matchEvents(r, events)
	}
	return nil
}
