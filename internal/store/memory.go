package store

import (
	"context"
	"sync"
)

// Memory is a process-local Store. Nothing survives a restart; it backs
// tests and throwaway demo tournaments.
type Memory struct {
	mu          sync.Mutex
	tournaments map[string]TournamentDoc
	latest      string
	rings       map[string]RingDoc
	users       map[string]UserDoc
	journal     []Action
}

func NewMemory() *Memory {
	return &Memory{
		tournaments: make(map[string]TournamentDoc),
		rings:       make(map[string]RingDoc),
		users:       make(map[string]UserDoc),
	}
}

func copyTournament(d TournamentDoc) TournamentDoc {
	d.RingIDs = d.RingIDs.Clone()
	d.UserIDs = d.UserIDs.Clone()
	return d
}

func copyRing(d RingDoc) RingDoc {
	d.CJIDs = d.CJIDs.Clone()
	return d
}

func (m *Memory) CreateTournament(ctx context.Context, doc TournamentDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournaments[doc.ID] = copyTournament(doc)
	m.latest = doc.ID
	return nil
}

func (m *Memory) GetTournament(ctx context.Context, id string) (TournamentDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tournaments[id]
	if !ok {
		return TournamentDoc{}, ErrNotFound
	}
	return copyTournament(doc), nil
}

func (m *Memory) LatestTournament(ctx context.Context) (TournamentDoc, error) {
	m.mu.Lock()
	id := m.latest
	m.mu.Unlock()
	if id == "" {
		return TournamentDoc{}, ErrNotFound
	}
	return m.GetTournament(ctx, id)
}

func (m *Memory) UpdateTournament(ctx context.Context, doc TournamentDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tournaments[doc.ID]
	if !ok {
		return ErrNotFound
	}
	doc = copyTournament(doc)
	doc.CreatedAt = old.CreatedAt
	m.tournaments[doc.ID] = doc
	return nil
}

func (m *Memory) InsertRings(ctx context.Context, docs []RingDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.rings[d.ID] = copyRing(d)
	}
	return nil
}

func (m *Memory) GetRing(ctx context.Context, id string) (RingDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rings[id]
	if !ok {
		return RingDoc{}, ErrNotFound
	}
	return copyRing(doc), nil
}

func (m *Memory) UpdateRing(ctx context.Context, doc RingDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rings[doc.ID]
	if !ok {
		return ErrNotFound
	}
	doc = copyRing(doc)
	doc.Index = old.Index
	m.rings[doc.ID] = doc
	return nil
}

func (m *Memory) SaveUser(ctx context.Context, doc UserDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[doc.ID] = doc
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (UserDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.users[id]
	if !ok {
		return UserDoc{}, ErrNotFound
	}
	return doc, nil
}

func (m *Memory) AppendAction(ctx context.Context, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Seq = int64(len(m.journal) + 1)
	m.journal = append(m.journal, a)
	return nil
}

// Journal returns a copy of every action appended so far.
func (m *Memory) Journal() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, len(m.journal))
	copy(out, m.journal)
	return out
}

func (m *Memory) Close() error { return nil }
