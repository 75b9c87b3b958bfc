package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Store is the document store behind the tournament: create, read and
// update by id, plus an unordered bulk insert for rings. Implementations
// must be safe for concurrent use.
type Store interface {
	CreateTournament(ctx context.Context, doc TournamentDoc) error
	GetTournament(ctx context.Context, id string) (TournamentDoc, error)
	LatestTournament(ctx context.Context) (TournamentDoc, error)
	UpdateTournament(ctx context.Context, doc TournamentDoc) error

	InsertRings(ctx context.Context, docs []RingDoc) error
	GetRing(ctx context.Context, id string) (RingDoc, error)
	UpdateRing(ctx context.Context, doc RingDoc) error

	// SaveUser inserts or replaces the user document with doc.ID.
	SaveUser(ctx context.Context, doc UserDoc) error
	GetUser(ctx context.Context, id string) (UserDoc, error)

	AppendAction(ctx context.Context, a Action) error

	Close() error
}

type TournamentDoc struct {
	ID        string     `db:"id" gorm:"column:id;primaryKey"`
	RingIDs   StringList `db:"ring_ids" gorm:"column:ring_ids;type:text"`
	UserIDs   StringList `db:"user_ids" gorm:"column:user_ids;type:text"`
	CreatedAt time.Time  `db:"created_at" gorm:"column:created_at"`
}

func (TournamentDoc) TableName() string { return "tournaments" }

type UserDoc struct {
	ID         string `db:"id" gorm:"column:id;primaryKey"`
	Identity   string `db:"identity" gorm:"column:identity"`
	Name       string `db:"name" gorm:"column:name"`
	Authorised bool   `db:"authorised" gorm:"column:authorised"`
}

func (UserDoc) TableName() string { return "users" }

// RingDoc.JPID is empty while the ring is closed.
type RingDoc struct {
	ID        string     `db:"id" gorm:"column:id;primaryKey"`
	Index     int        `db:"ring_index" gorm:"column:ring_index"`
	JPID      string     `db:"jp_id" gorm:"column:jp_id"`
	CJIDs     StringList `db:"cj_ids" gorm:"column:cj_ids;type:text"`
	SlotCount int        `db:"slot_count" gorm:"column:slot_count"`
}

func (RingDoc) TableName() string { return "rings" }

// Action is one journal entry. The journal is informational: nothing reads
// it back to rebuild state.
type Action struct {
	Seq          int64     `db:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TournamentID string    `db:"tournament_id" gorm:"column:tournament_id"`
	Actor        string    `db:"actor" gorm:"column:actor"`
	Action       string    `db:"action" gorm:"column:action"`
	Detail       string    `db:"detail" gorm:"column:detail"`
	At           time.Time `db:"created_at" gorm:"column:created_at"`
}

func (Action) TableName() string { return "journal" }

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = out
	return nil
}

func (l StringList) Clone() StringList {
	if l == nil {
		return StringList{}
	}
	return slices.Clone(l)
}
