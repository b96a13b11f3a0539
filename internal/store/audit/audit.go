// Package audit keeps the append-only rejection log. Rejected patterns are
// retained for downstream analysis, never silently dropped.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"wyckoff/internal/campaign"
)

// RejectionRecord is one rejected pattern with the structured reason the
// engine produced.
type RejectionRecord struct {
	ID         int64  `json:"id"`
	Timestamp  int64  `json:"ts"`
	Symbol     string `json:"symbol"`
	CampaignID string `json:"campaign_id,omitempty"`
	Code       string `json:"code"`
	Reason     string `json:"reason"`
	PatternRaw string `json:"pattern"`
}

// Log is a small append/list store on its own SQLite file, separate from the
// campaign snapshot DB so audit writes never contend with snapshot upserts.
type Log struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewLog(path string) (*Log, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	l := &Log{db: db, path: path}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS rejections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	campaign_id TEXT,
	code TEXT NOT NULL,
	reason TEXT NOT NULL,
	pattern_raw TEXT
);
CREATE INDEX IF NOT EXISTS idx_rejections_symbol ON rejections(symbol, ts);`
	_, err := l.db.Exec(ddl)
	return err
}

// Append records one rejection.
func (l *Log) Append(ctx context.Context, symbol, campaignID, code, reason string, pattern *campaign.PatternEvent) error {
	raw := ""
	if pattern != nil {
		if b, err := json.Marshal(pattern); err == nil {
			raw = string(b)
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO rejections (ts, symbol, campaign_id, code, reason, pattern_raw) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), symbol, campaignID, code, reason, raw)
	return err
}

// List returns the most recent rejections, optionally filtered by symbol.
func (l *Log) List(ctx context.Context, symbol string, limit int) ([]RejectionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, ts, symbol, COALESCE(campaign_id, ''), code, reason, COALESCE(pattern_raw, '') FROM rejections`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, strings.ToUpper(symbol))
	}
	q += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, limit)

	l.mu.Lock()
	defer l.mu.Unlock()
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RejectionRecord
	for rows.Next() {
		var rec RejectionRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &rec.CampaignID, &rec.Code, &rec.Reason, &rec.PatternRaw); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
