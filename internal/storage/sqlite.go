package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"riskwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:riskwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			total REAL NOT NULL,
			level TEXT NOT NULL,
			category_json TEXT NOT NULL,
			indicator_json TEXT NOT NULL,
			factors_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts)`,
		`CREATE TABLE IF NOT EXISTS history (
			date TEXT PRIMARY KEY,
			total REAL NOT NULL,
			category_json TEXT,
			alert_count INTEGER NOT NULL,
			top_json TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			doc_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_rule ON dispatches(rule_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, score model.RiskScore) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (ts, total, level, category_json, indicator_json, factors_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		score.Timestamp.UTC().Format(time.RFC3339Nano),
		score.Total,
		string(score.Level),
		encodeJSON(score.CategoryScores),
		encodeJSON(score.IndicatorScores),
		encodeJSON(score.Factors),
	)
	return err
}

func (s *sqliteStore) SaveHistoryEntry(ctx context.Context, entry model.HistoryEntry) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (date, total, category_json, alert_count, top_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total = excluded.total,
			category_json = excluded.category_json,
			alert_count = excluded.alert_count,
			top_json = excluded.top_json`,
		entry.Date.UTC().Format("2006-01-02"),
		entry.Total,
		encodeJSON(entry.CategoryScores),
		entry.AlertCount,
		encodeJSON(entry.TopIndicators),
	)
	return err
}

func (s *sqliteStore) LoadHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 365
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, total, category_json, alert_count, top_json
		FROM (SELECT * FROM history ORDER BY date DESC LIMIT ?)
		ORDER BY date ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HistoryEntry
	for rows.Next() {
		var dateStr, categoryJSON, topJSON string
		var total float64
		var alertCount int
		if err := rows.Scan(&dateStr, &total, &categoryJSON, &alertCount, &topJSON); err != nil {
			return nil, err
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		out = append(out, decodeHistoryRow(date, total, categoryJSON, alertCount, topJSON))
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveDispatch(ctx context.Context, ts time.Time, ruleID string, kind string, ok bool, errMsg string) error {
	if s.db == nil {
		return nil
	}
	okInt := 0
	if ok {
		okInt = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (ts, rule_id, kind, ok, error) VALUES (?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), ruleID, kind, okInt, errMsg,
	)
	return err
}

func (s *sqliteStore) LoadRules(ctx context.Context) ([]model.AlertRule, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT doc_json FROM rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AlertRule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rule, err := decodeRule(doc)
		if err != nil {
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveRules(ctx context.Context, ruleSet []model.AlertRule) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rules (id, doc_json, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rule := range ruleSet {
		if _, err := stmt.ExecContext(ctx, rule.ID, encodeJSON(rule), now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
