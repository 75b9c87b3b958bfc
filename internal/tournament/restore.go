package tournament

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/store"
)

func (t *Tournament) load(ctx context.Context) error {
	if !t.opts.Fresh {
		doc, err := t.store.LatestTournament(ctx)
		switch {
		case err == nil:
			return t.restore(ctx, doc)
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("load tournament: %w", err)
		}
	}
	return t.initialise(ctx)
}

func (t *Tournament) freshRingDoc(index int) store.RingDoc {
	return store.RingDoc{ID: t.newID(), Index: index, CJIDs: store.StringList{}, SlotCount: t.opts.SlotsPerRing}
}

// initialise creates a new tournament with every ring closed.
func (t *Tournament) initialise(ctx context.Context) error {
	if t.opts.Rings < 1 || t.opts.SlotsPerRing < 1 {
		return fmt.Errorf("initialise tournament: need at least one ring and one slot, got %d rings of %d", t.opts.Rings, t.opts.SlotsPerRing)
	}
	docs := make([]store.RingDoc, 0, t.opts.Rings)
	ids := make(store.StringList, 0, t.opts.Rings)
	for i := 0; i < t.opts.Rings; i++ {
		d := t.freshRingDoc(i)
		docs = append(docs, d)
		ids = append(ids, d.ID)
	}
	if err := t.store.InsertRings(ctx, docs); err != nil {
		return fmt.Errorf("insert rings: %w", err)
	}

	doc := store.TournamentDoc{ID: t.newID(), RingIDs: ids, UserIDs: store.StringList{}, CreatedAt: time.Now().UTC()}
	if err := t.store.CreateTournament(ctx, doc); err != nil {
		return fmt.Errorf("create tournament: %w", err)
	}
	t.doc = doc
	for _, d := range docs {
		t.rings = append(t.rings, newRing(t, d))
	}
	t.log.Info("tournament created", zap.String("id", doc.ID), zap.Int("rings", len(docs)), zap.Int("slots", t.opts.SlotsPerRing))
	return nil
}

// restore rebuilds users (all disconnected) and rings with their JP and judge
// bindings. Missing documents are logged: a missing user is skipped and a
// missing ring is replaced by a fresh closed one.
func (t *Tournament) restore(ctx context.Context, doc store.TournamentDoc) error {
	t.doc = doc

	for _, id := range doc.UserIDs {
		ud, err := t.store.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			t.log.Warn("restore: user document missing", zap.String("user", id))
			continue
		}
		if err != nil {
			return fmt.Errorf("restore user %s: %w", id, err)
		}
		role := Role(ud.Identity)
		if !role.Valid() {
			t.log.Warn("restore: unknown identity", zap.String("user", id), zap.String("identity", ud.Identity))
			continue
		}
		// Authorisation is granted back below, only to judges a ring lists.
		t.users[id] = &User{ID: id, Role: role, Name: ud.Name, MatchConfig: t.opts.Match}
	}

	var replaced []store.RingDoc
	ringIDs := make(store.StringList, 0, len(doc.RingIDs))
	for i, id := range doc.RingIDs {
		rd, err := t.store.GetRing(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			t.log.Warn("restore: ring document missing, replacing", zap.String("ring", id), zap.Int("index", i))
			rd = t.freshRingDoc(i)
			replaced = append(replaced, rd)
		case err != nil:
			return fmt.Errorf("restore ring %s: %w", id, err)
		}
		rd.Index = i
		ringIDs = append(ringIDs, rd.ID)
		t.rings = append(t.rings, t.restoreRing(rd))
	}

	if len(replaced) > 0 {
		if err := t.store.InsertRings(ctx, replaced); err != nil {
			return fmt.Errorf("replace rings: %w", err)
		}
		t.doc.RingIDs = ringIDs
		if err := t.store.UpdateTournament(ctx, t.doc); err != nil {
			return fmt.Errorf("update tournament: %w", err)
		}
	}

	t.log.Info("tournament restored",
		zap.String("id", doc.ID),
		zap.Int("rings", len(t.rings)),
		zap.Int("users", len(t.users)),
		zap.Int("open", t.openRings()),
	)
	return nil
}

func (t *Tournament) restoreRing(rd store.RingDoc) *Ring {
	r := newRing(t, rd)
	if rd.JPID == "" {
		return r
	}
	jp := t.users[rd.JPID]
	switch {
	case jp == nil:
		t.log.Warn("restore: ring jury president unknown", zap.Int("ring", rd.Index), zap.String("user", rd.JPID))
		return r
	case jp.Role != RoleJuryPresident || jp.Ring != nil:
		t.log.Error("restore: conflicting jury president binding", zap.Int("ring", rd.Index), zap.String("user", rd.JPID))
		return r
	}
	r.jp = jp
	jp.Ring = r

	for _, id := range rd.CJIDs {
		cj := t.users[id]
		switch {
		case cj == nil:
			t.log.Warn("restore: ring corner judge unknown", zap.Int("ring", rd.Index), zap.String("user", id))
			continue
		case cj.Role != RoleCornerJudge || cj.Ring != nil:
			t.log.Error("restore: conflicting corner judge binding", zap.Int("ring", rd.Index), zap.String("user", id))
			continue
		case len(r.judges) >= r.SlotCount:
			t.log.Error("restore: ring over capacity", zap.Int("ring", rd.Index), zap.String("user", id))
			continue
		}
		cj.Ring = r
		cj.Authorised = true
		r.judges = append(r.judges, cj)
	}
	return r
}
