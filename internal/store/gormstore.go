package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore keeps documents in any gorm dialect. Production runs it on
// Postgres through pgx.
type GormStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*GormStore, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	sqlDB := stdlib.OpenDB(*cfg)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates the document tables on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&TournamentDoc{}, &UserDoc{}, &RingDoc{}, &Action{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func gormNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateTournament(ctx context.Context, doc TournamentDoc) error {
	return s.db.WithContext(ctx).Create(&doc).Error
}

func (s *GormStore) GetTournament(ctx context.Context, id string) (TournamentDoc, error) {
	var doc TournamentDoc
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	return doc, gormNotFound(err)
}

func (s *GormStore) LatestTournament(ctx context.Context) (TournamentDoc, error) {
	var doc TournamentDoc
	err := s.db.WithContext(ctx).Order("created_at desc").Take(&doc).Error
	return doc, gormNotFound(err)
}

func (s *GormStore) UpdateTournament(ctx context.Context, doc TournamentDoc) error {
	return affected(s.db.WithContext(ctx).Model(&TournamentDoc{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"ring_ids": doc.RingIDs.Clone(), "user_ids": doc.UserIDs.Clone()}))
}

func (s *GormStore) InsertRings(ctx context.Context, docs []RingDoc) error {
	if len(docs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&docs).Error
}

func (s *GormStore) GetRing(ctx context.Context, id string) (RingDoc, error) {
	var doc RingDoc
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	return doc, gormNotFound(err)
}

func (s *GormStore) UpdateRing(ctx context.Context, doc RingDoc) error {
	return affected(s.db.WithContext(ctx).Model(&RingDoc{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"jp_id": doc.JPID, "cj_ids": doc.CJIDs.Clone(), "slot_count": doc.SlotCount}))
}

func (s *GormStore) SaveUser(ctx context.Context, doc UserDoc) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&doc).Error
}

func (s *GormStore) GetUser(ctx context.Context, id string) (UserDoc, error) {
	var doc UserDoc
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	return doc, gormNotFound(err)
}

func (s *GormStore) AppendAction(ctx context.Context, a Action) error {
	return s.db.WithContext(ctx).Create(&a).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
