package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"riskwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/riskwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			level TEXT NOT NULL,
			category_json JSONB NOT NULL,
			indicator_json JSONB NOT NULL,
			factors_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts)`,
		`CREATE TABLE IF NOT EXISTS history (
			date DATE PRIMARY KEY,
			total DOUBLE PRECISION NOT NULL,
			category_json JSONB,
			alert_count INTEGER NOT NULL,
			top_json JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			doc_json JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dispatches (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			rule_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ok BOOLEAN NOT NULL,
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

func (s *postgresStore) SaveSnapshot(ctx context.Context, score model.RiskScore) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (ts, total, level, category_json, indicator_json, factors_json)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		score.Timestamp.UTC(),
		score.Total,
		string(score.Level),
		encodeJSON(score.CategoryScores),
		encodeJSON(score.IndicatorScores),
		encodeJSON(score.Factors),
	)
	return err
}

func (s *postgresStore) SaveHistoryEntry(ctx context.Context, entry model.HistoryEntry) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (date, total, category_json, alert_count, top_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			total = EXCLUDED.total,
			category_json = EXCLUDED.category_json,
			alert_count = EXCLUDED.alert_count,
			top_json = EXCLUDED.top_json`,
		entry.Date.UTC(),
		entry.Total,
		encodeJSON(entry.CategoryScores),
		entry.AlertCount,
		encodeJSON(entry.TopIndicators),
	)
	return err
}

func (s *postgresStore) LoadHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 365
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, total, category_json::text, alert_count, top_json::text
		FROM (SELECT * FROM history ORDER BY date DESC LIMIT $1) recent
		ORDER BY date ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HistoryEntry
	for rows.Next() {
		var date time.Time
		var categoryJSON, topJSON sql.NullString
		var total float64
		var alertCount int
		if err := rows.Scan(&date, &total, &categoryJSON, &alertCount, &topJSON); err != nil {
			return nil, err
		}
		out = append(out, decodeHistoryRow(date, total, categoryJSON.String, alertCount, topJSON.String))
	}
	return out, rows.Err()
}

func (s *postgresStore) SaveDispatch(ctx context.Context, ts time.Time, ruleID string, kind string, ok bool, errMsg string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (ts, rule_id, kind, ok, error) VALUES ($1, $2, $3, $4, $5)`,
		ts.UTC(), ruleID, kind, ok, errMsg,
	)
	return err
}

func (s *postgresStore) LoadRules(ctx context.Context) ([]model.AlertRule, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT doc_json::text FROM rules ORDER BY id`)
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

func (s *postgresStore) SaveRules(ctx context.Context, ruleSet []model.AlertRule) error {
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
		`INSERT INTO rules (id, doc_json, updated_at) VALUES ($1, $2, $3)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, rule := range ruleSet {
		if _, err := stmt.ExecContext(ctx, rule.ID, encodeJSON(rule), now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
