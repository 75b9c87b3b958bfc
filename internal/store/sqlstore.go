package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, ring_ids, user_ids, created_at) VALUES
		(:id, :ring_ids, :user_ids, :created_at)
	`
	getTournamentQuery    = "SELECT * FROM tournaments WHERE id = ?"
	latestTournamentQuery = "SELECT * FROM tournaments ORDER BY created_at DESC LIMIT 1"
	updateTournamentQuery = `
		UPDATE tournaments SET
		ring_ids = :ring_ids,
		user_ids = :user_ids
		WHERE id = :id
	`
	insertRingQuery = `
		INSERT INTO rings (id, ring_index, jp_id, cj_ids, slot_count) VALUES
		(:id, :ring_index, :jp_id, :cj_ids, :slot_count)
	`
	getRingQuery    = "SELECT * FROM rings WHERE id = ?"
	updateRingQuery = `
		UPDATE rings SET
		jp_id = :jp_id,
		cj_ids = :cj_ids,
		slot_count = :slot_count
		WHERE id = :id
	`
	saveUserQuery = `
		INSERT INTO users (id, identity, name, authorised) VALUES
		(:id, :identity, :name, :authorised)
		ON CONFLICT (id) DO UPDATE SET
		identity = excluded.identity,
		name = excluded.name,
		authorised = excluded.authorised
	`
	getUserQuery      = "SELECT * FROM users WHERE id = ?"
	appendActionQuery = `
		INSERT INTO journal (tournament_id, actor, action, detail, created_at) VALUES
		(:tournament_id, :actor, :action, :detail, :created_at)
	`
)

// SQLStore keeps documents in SQLite through sqlx.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLite connects to dsn and applies the embedded migrations.
func OpenSQLite(dsn string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, err
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLStore(db), nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB exposes the connection so the session manager can share the database file.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	// Not closing m: that would close db along with the driver.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateTournament(ctx context.Context, doc TournamentDoc) error {
	_, err := s.db.NamedExecContext(ctx, createTournamentQuery, doc)
	return err
}

func (s *SQLStore) GetTournament(ctx context.Context, id string) (TournamentDoc, error) {
	var doc TournamentDoc
	err := s.db.GetContext(ctx, &doc, getTournamentQuery, id)
	return doc, notFound(err)
}

func (s *SQLStore) LatestTournament(ctx context.Context) (TournamentDoc, error) {
	var doc TournamentDoc
	err := s.db.GetContext(ctx, &doc, latestTournamentQuery)
	return doc, notFound(err)
}

func (s *SQLStore) UpdateTournament(ctx context.Context, doc TournamentDoc) error {
	return mustAffect(s.db.NamedExecContext(ctx, updateTournamentQuery, doc))
}

func (s *SQLStore) InsertRings(ctx context.Context, docs []RingDoc) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, insertRingQuery, docs)
	return err
}

func (s *SQLStore) GetRing(ctx context.Context, id string) (RingDoc, error) {
	var doc RingDoc
	err := s.db.GetContext(ctx, &doc, getRingQuery, id)
	return doc, notFound(err)
}

func (s *SQLStore) UpdateRing(ctx context.Context, doc RingDoc) error {
	return mustAffect(s.db.NamedExecContext(ctx, updateRingQuery, doc))
}

func (s *SQLStore) SaveUser(ctx context.Context, doc UserDoc) error {
	_, err := s.db.NamedExecContext(ctx, saveUserQuery, doc)
	return err
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (UserDoc, error) {
	var doc UserDoc
	err := s.db.GetContext(ctx, &doc, getUserQuery, id)
	return doc, notFound(err)
}

func (s *SQLStore) AppendAction(ctx context.Context, a Action) error {
	_, err := s.db.NamedExecContext(ctx, appendActionQuery, a)
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }
