package tournament

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/hub"
	"github.com/hansimuller/taekwon/internal/metrics"
	"github.com/hansimuller/taekwon/internal/store"
	"github.com/hansimuller/taekwon/internal/types"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

var ErrStopped = errors.New("tournament stopped")

type Msg interface{ isTournamentMsg() }

// Connect registers a new channel. SessionID must be non-empty.
type Connect struct {
	ConnID    string
	SessionID string
	Outbox    chan<- types.ServerMessage
}

func (Connect) isTournamentMsg() {}

type Disconnect struct{ ConnID string }

func (Disconnect) isTournamentMsg() {}

type FromClient struct {
	ConnID  string
	Message types.ClientMessage
}

func (FromClient) isTournamentMsg() {}

// Tick advances every running match clock by Step.
type Tick struct{ Step time.Duration }

func (Tick) isTournamentMsg() {}

type GetRingStates struct {
	Reply chan []wire.RingState
}

func (GetRingStates) isTournamentMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isTournamentMsg() {}

type Shutdown struct{}

func (Shutdown) isTournamentMsg() {}

// Verifier checks the Jury President password.
type Verifier interface {
	Verify(password string) bool
}

type Options struct {
	Rings        int
	SlotsPerRing int
	Match        engine.Config
	// TickInterval drives match clocks; zero disables the internal ticker
	// and leaves time to Tick messages.
	TickInterval time.Duration
	StoreTimeout time.Duration
	// Fresh starts a new tournament even if the store holds one.
	Fresh bool
}

// Tournament owns every ring, user and channel. All of its state is touched
// only by the goroutine running Run; everything else talks to it through the
// inbox.
type Tournament struct {
	opts    Options
	store   store.Store
	secret  Verifier
	log     *zap.Logger
	metrics *metrics.Metrics
	journal *journal
	// id is fixed at construction and safe to read from any goroutine.
	id string

	inbox chan Msg
	done  chan struct{}
	ctx   context.Context

	doc   store.TournamentDoc
	rings []*Ring
	users map[string]*User
	conns map[string]*conn
	hub   *hub.Hub
}

// New restores the latest tournament from st, or creates one when there is
// none. The returned tournament does nothing until Run is called.
func New(ctx context.Context, opts Options, st store.Store, secret Verifier, log *zap.Logger, m *metrics.Metrics) (*Tournament, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	t := &Tournament{
		opts:    opts,
		store:   st,
		secret:  secret,
		log:     log.With(zap.String("component", "tournament")),
		metrics: m,
		inbox:   make(chan Msg, 256),
		done:    make(chan struct{}),
		ctx:     ctx,
		users:   make(map[string]*User),
		conns:   make(map[string]*conn),
		hub:     hub.New(),
	}
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	t.id = t.doc.ID
	t.journal = newJournal(st, t.id, t.log, m, opts.StoreTimeout)
	t.metrics.SetOpenRings(t.openRings())
	return t, nil
}

func (t *Tournament) ID() string { return t.id }

// Inbox exposes the inbox so tests or the ws layer can send messages.
func (t *Tournament) Inbox() chan<- Msg { return t.inbox }

// Done is closed once Run has returned.
func (t *Tournament) Done() <-chan struct{} { return t.done }

// Post delivers m unless ctx ends or the tournament has stopped first.
func (t *Tournament) Post(ctx context.Context, m Msg) error {
	select {
	case t.inbox <- m:
		return nil
	case <-t.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RingStates asks the loop for the public ring list.
func (t *Tournament) RingStates(ctx context.Context) ([]wire.RingState, error) {
	reply := make(chan []wire.RingState, 1)
	if err := t.Post(ctx, GetRingStates{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rs := <-reply:
		return rs, nil
	case <-t.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes messages and clock ticks one at a time until ctx is
// cancelled or Shutdown arrives.
func (t *Tournament) Run(ctx context.Context) error {
	t.ctx = ctx
	defer t.shutdown()

	t.journal.start()

	var tick <-chan time.Time
	if t.opts.TickInterval > 0 {
		ticker := time.NewTicker(t.opts.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	t.log.Info("tournament running", zap.String("id", t.doc.ID), zap.Int("rings", len(t.rings)), zap.Int("users", len(t.users)))
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick:
			t.tick(t.opts.TickInterval)

		case m := <-t.inbox:
			switch msg := m.(type) {
			case Connect:
				t.connect(msg)
			case Disconnect:
				t.disconnect(msg.ConnID)
			case FromClient:
				t.handle(msg)
			case Tick:
				t.tick(msg.Step)
			case GetRingStates:
				msg.Reply <- t.ringStates()
			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- t.view()
			case Shutdown:
				return nil
			}
		}
		t.reapDropped()
	}
}

func (t *Tournament) shutdown() {
	t.hub.CloseAll()
	t.journal.stop()
	close(t.done)
	t.log.Info("tournament stopped", zap.String("id", t.doc.ID))
}

// reapDropped treats channels the hub dropped for being slow as disconnects.
func (t *Tournament) reapDropped() {
	for ids := t.hub.Dropped(); len(ids) > 0; ids = t.hub.Dropped() {
		for _, id := range ids {
			t.metrics.ClientDropped()
			t.log.Warn("dropping slow client", zap.String("conn", id))
			t.disconnect(id)
		}
	}
}

func (t *Tournament) tick(step time.Duration) {
	for _, r := range t.rings {
		if r.match == nil {
			continue
		}
		_ = r.applyMatch(engine.Command{Type: engine.CmdTick, Step: step})
	}
}

func (t *Tournament) ringStates() []wire.RingState {
	out := make([]wire.RingState, 0, len(t.rings))
	for _, r := range t.rings {
		out = append(out, r.State())
	}
	return out
}

func (t *Tournament) ring(index int) (*Ring, error) {
	if index < 0 || index >= len(t.rings) {
		return nil, ErrRingDoesNotExist
	}
	return t.rings[index], nil
}

func (t *Tournament) openRings() int {
	n := 0
	for _, r := range t.rings {
		if r.Open() {
			n++
		}
	}
	return n
}

func (t *Tournament) newID() string { return uuid.NewString() }

// Outbound

func (t *Tournament) sendConn(connID, event string, data any) {
	t.hub.Send(connID, types.ServerMessage{Type: event, Data: data})
}

func (t *Tournament) send(u *User, event string, data any) {
	if u == nil || u.ConnID == "" {
		return
	}
	t.sendConn(u.ConnID, event, data)
}

func (t *Tournament) broadcast(event string, data any) {
	t.hub.Broadcast(types.ServerMessage{Type: event, Data: data})
}

func (t *Tournament) protocolError(connID, format string, args ...any) {
	t.sendConn(connID, wire.EvtProtocolError, wire.Message{Message: fmt.Sprintf(format, args...)})
}

// reject surfaces a refused request to u as the named event for err.
func (t *Tournament) reject(u *User, action string, index int, err error) {
	switch {
	case errors.Is(err, ErrRingDoesNotExist):
		t.send(u, wire.EvtRingDoesNotExist, wire.RingRef{Index: index})
	case errors.Is(err, ErrRingAlreadyOpen):
		t.send(u, wire.EvtRingAlreadyOpen, wire.RingRef{Index: index})
	case errors.Is(err, ErrRingFull):
		t.send(u, wire.EvtRingIsFull, wire.RingRef{Index: index})
	case errors.Is(err, ErrMatchInProgress):
		t.send(u, wire.EvtMatchInProgress, wire.RingRef{Index: index})
	case errors.Is(err, ErrRingClosed):
		t.send(u, wire.EvtRingClosed, wire.RingRef{Index: index})
	case errors.Is(err, ErrStore):
		t.send(u, wire.EvtActionRejected, wire.ActionRejected{Action: action, Reason: ErrStore.Error()})
	default:
		t.send(u, wire.EvtActionRejected, wire.ActionRejected{Action: action, Reason: err.Error()})
	}
	t.log.Debug("request rejected", zap.String("user", u.ID), zap.String("action", action), zap.Error(err))
}

// Persistence. Every state-defining write is bounded by StoreTimeout and
// completes before the in-memory change it describes.

func (t *Tournament) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(t.ctx, t.opts.StoreTimeout)
}

func (t *Tournament) persistRing(doc store.RingDoc) error {
	ctx, cancel := t.storeCtx()
	defer cancel()
	if err := t.store.UpdateRing(ctx, doc); err != nil {
		t.metrics.StoreError("updateRing")
		t.log.Error("persist ring", zap.String("ring", doc.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (t *Tournament) persistUser(u *User) error {
	ctx, cancel := t.storeCtx()
	defer cancel()
	if err := t.store.SaveUser(ctx, u.doc()); err != nil {
		t.metrics.StoreError("saveUser")
		t.log.Error("persist user", zap.String("user", u.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (t *Tournament) persistUserIDs(ids []string) error {
	doc := t.doc
	doc.UserIDs = store.StringList(ids)
	ctx, cancel := t.storeCtx()
	defer cancel()
	if err := t.store.UpdateTournament(ctx, doc); err != nil {
		t.metrics.StoreError("updateTournament")
		t.log.Error("persist tournament", zap.String("tournament", doc.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	t.doc = doc
	return nil
}

func (t *Tournament) record(actor, action, detail string) {
	t.journal.record(actor, action, detail)
}

// View is a copy of the tournament's state for tests and diagnostics.
type View struct {
	ID    string
	Users map[string]UserView
	Rings []RingView
	Conns int
}

type UserView struct {
	Role       Role
	Name       string
	Connected  bool
	Authorised bool
	RingIndex  int
}

type RingView struct {
	Index     int
	SlotCount int
	JPID      string
	CJIDs     []string
	Pending   []string
	Match     *wire.MatchSnapshot
}

func (t *Tournament) view() View {
	v := View{ID: t.doc.ID, Users: make(map[string]UserView, len(t.users)), Conns: t.hub.Len()}
	for id, u := range t.users {
		v.Users[id] = UserView{
			Role:       u.Role,
			Name:       u.Name,
			Connected:  u.Connected,
			Authorised: u.Authorised,
			RingIndex:  u.ringIndex(),
		}
	}
	for _, r := range t.rings {
		rv := RingView{Index: r.Index, SlotCount: r.SlotCount, CJIDs: []string{}, Pending: []string{}}
		if r.jp != nil {
			rv.JPID = r.jp.ID
		}
		for _, cj := range r.judges {
			rv.CJIDs = append(rv.CJIDs, cj.ID)
		}
		for _, cj := range r.pending {
			rv.Pending = append(rv.Pending, cj.ID)
		}
		if r.match != nil {
			snap := r.match.Snapshot()
			rv.Match = &snap
		}
		v.Rings = append(v.Rings, rv)
	}
	return v
}
