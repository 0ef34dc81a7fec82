package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveSnapshot(ctx context.Context, score model.RiskScore) error
	SaveHistoryEntry(ctx context.Context, entry model.HistoryEntry) error
	LoadHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error)
	SaveDispatch(ctx context.Context, ts time.Time, ruleID string, kind string, ok bool, errMsg string) error
	LoadRules(ctx context.Context) ([]model.AlertRule, error)
	SaveRules(ctx context.Context, ruleSet []model.AlertRule) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

// RuleRepo adapts a Store to the rule engine's repository contract.
type RuleRepo struct {
	S Store
}

func (r RuleRepo) Load(ctx context.Context) ([]model.AlertRule, error) {
	return r.S.LoadRules(ctx)
}

func (r RuleRepo) Save(ctx context.Context, ruleSet []model.AlertRule) error {
	return r.S.SaveRules(ctx, ruleSet)
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func decodeRule(doc string) (model.AlertRule, error) {
	var rule model.AlertRule
	err := json.Unmarshal([]byte(doc), &rule)
	return rule, err
}

func decodeHistoryRow(date time.Time, total float64, categoryJSON string, alertCount int, topJSON string) model.HistoryEntry {
	entry := model.HistoryEntry{
		Date:       date.UTC(),
		Total:      total,
		AlertCount: alertCount,
	}
	if categoryJSON != "" {
		_ = json.Unmarshal([]byte(categoryJSON), &entry.CategoryScores)
	}
	if topJSON != "" {
		_ = json.Unmarshal([]byte(topJSON), &entry.TopIndicators)
	}
	return entry
}
