// Package sqlite persists campaign snapshots via Gorm + SQLite. It is an
// event-bus subscriber concern: the engine itself never touches storage.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"wyckoff/internal/campaign"
	"wyckoff/internal/store/model"
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// The DSN uses modernc.org/sqlite's _pragma syntax; route the gorm
	// dialector to that (cgo-free) driver registration.
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db)
}

func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&model.CampaignModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: keep connection count low to avoid lock contention.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

// SaveCampaign upserts the snapshot keyed by campaign id.
func (s *Store) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	if c == nil {
		return fmt.Errorf("nil campaign")
	}
	events, err := json.Marshal(c.Events)
	if err != nil {
		return fmt.Errorf("marshal campaign events: %w", err)
	}
	rec := model.CampaignModel{
		ID:               c.ID,
		Symbol:           c.Symbol,
		RangeLow:         c.Range.Low.String(),
		RangeHigh:        c.Range.High.String(),
		State:            string(c.State),
		Phase:            string(c.Phase),
		WeightedEntry:    c.WeightedEntry.String(),
		HeatPct:          c.HeatPct.String(),
		CorrelationGroup: c.CorrelationGroup,
		Currency:         c.Currency,
		Category:         c.Category,
		Failing:          c.Failing,
		EventCount:       len(c.Events),
		EventsJSON:       events,
		CreatedAtUnix:    c.CreatedAt.Unix(),
		UpdatedAtUnix:    c.UpdatedAt.Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// ListCampaigns returns persisted snapshots, optionally filtered by state.
func (s *Store) ListCampaigns(ctx context.Context, state string, limit int) ([]model.CampaignModel, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Model(&model.CampaignModel{}).Order("updated_at DESC").Limit(limit)
	if state != "" {
		q = q.Where("state = ?", strings.ToUpper(state))
	}
	var out []model.CampaignModel
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
