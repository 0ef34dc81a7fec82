package model

import "time"

type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// Indicator is a single measurable risk metric. The definition, purpose,
// formula and threshold fields are opaque business text, never evaluated.
type Indicator struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Definition string   `json:"definition,omitempty" yaml:"definition,omitempty"`
	Purpose    string   `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Formula    string   `json:"formula,omitempty" yaml:"formula,omitempty"`
	Threshold  string   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Priority   Priority `json:"priority" yaml:"priority"`
	Status     Status   `json:"status" yaml:"status"`
}

type Subcategory struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	Indicators []Indicator `json:"indicators" yaml:"indicators"`
}

type Category struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Subcategories []Subcategory `json:"subcategories" yaml:"subcategories"`
}

// Catalog is the three-level indicator tree supplied by the catalogue
// subsystem. Read-only from this module's perspective.
type Catalog struct {
	Categories []Category `json:"categories" yaml:"categories"`
}

// RiskFactor is the per-indicator contribution breakdown attached to a
// RiskScore. Built fresh on every scoring pass, never mutated afterward.
type RiskFactor struct {
	IndicatorID   string  `json:"indicator_id"`
	IndicatorName string  `json:"indicator_name"`
	CategoryName  string  `json:"category_name"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	Contribution  float64 `json:"contribution"`
}

// RiskScore is one immutable scoring snapshot.
type RiskScore struct {
	Total           float64            `json:"total"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	IndicatorScores map[string]float64 `json:"indicator_scores"`
	Level           RiskLevel          `json:"level"`
	Timestamp       time.Time          `json:"timestamp"`
	Factors         []RiskFactor       `json:"factors"`
}

// HistoryEntry is one calendar day of risk history.
type HistoryEntry struct {
	Date           time.Time          `json:"date"`
	Total          float64            `json:"total"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	AlertCount     int                `json:"alert_count"`
	TopIndicators  []string           `json:"top_indicators,omitempty"`
}

type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendWorsening TrendDirection = "worsening"
)

type TrendResult struct {
	Trend         TrendDirection `json:"trend"`
	ChangePercent float64        `json:"change_percent"`
	AverageScore  float64        `json:"average_score"`
}

type ForecastDirection string

const (
	ForecastUp     ForecastDirection = "up"
	ForecastDown   ForecastDirection = "down"
	ForecastStable ForecastDirection = "stable"
)

type ForecastResult struct {
	PredictedScore float64           `json:"predicted_score"`
	Confidence     float64           `json:"confidence"`
	Direction      ForecastDirection `json:"direction"`
}

type ConditionKind string

const (
	CondRiskScore      ConditionKind = "risk_score"
	CondCategoryScore  ConditionKind = "category_score"
	CondIndicatorValue ConditionKind = "indicator_value"
	CondTrendChange    ConditionKind = "trend_change"
)

type Operator string

const (
	OpGT  Operator = "gt"
	OpGTE Operator = "gte"
	OpLT  Operator = "lt"
	OpLTE Operator = "lte"
	OpEQ  Operator = "eq"
	OpNEQ Operator = "neq"
)

type AlertCondition struct {
	Kind      ConditionKind `json:"kind" yaml:"kind"`
	Operator  Operator      `json:"operator" yaml:"operator"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
	TargetID  string        `json:"target_id,omitempty" yaml:"target_id,omitempty"`
}

type ActionKind string

const (
	ActionEmail    ActionKind = "email"
	ActionWebhook  ActionKind = "webhook"
	ActionSMS      ActionKind = "sms"
	ActionChat     ActionKind = "chat"
	ActionInternal ActionKind = "internal_alert"
)

// AlertAction names a notification channel plus its channel-specific
// configuration. The engine hands the config to the dispatcher untouched.
type AlertAction struct {
	Kind    ActionKind        `json:"kind" yaml:"kind"`
	Config  map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
}

// AlertRule is a user-defined condition set plus actions and a cooldown.
// LastTriggered and TriggerCount are the only fields the engine mutates.
type AlertRule struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled         bool             `json:"enabled" yaml:"enabled"`
	Conditions      []AlertCondition `json:"conditions" yaml:"conditions"`
	Actions         []AlertAction    `json:"actions" yaml:"actions"`
	Priority        Priority         `json:"priority" yaml:"priority"`
	CooldownMinutes int              `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	LastTriggered   *time.Time       `json:"last_triggered,omitempty" yaml:"last_triggered,omitempty"`
	TriggerCount    int              `json:"trigger_count" yaml:"trigger_count"`
}

// Alert is the structured record surfaced for internal_alert actions and
// kept in the in-memory alert store.
type Alert struct {
	Timestamp time.Time         `json:"timestamp"`
	RuleID    string            `json:"rule_id"`
	RuleName  string            `json:"rule_name"`
	Severity  string            `json:"severity"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Total     float64           `json:"total"`
	Level     RiskLevel         `json:"level"`
	Context   map[string]string `json:"context,omitempty"`
}
