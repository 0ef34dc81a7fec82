package dispatch

import (
	"context"
	"time"

	"riskwatch/internal/model"
)

// Payload is the standard envelope handed to every notification channel
// when a rule fires.
type Payload struct {
	RuleID     string          `json:"rule_id"`
	RuleName   string          `json:"rule_name"`
	TotalScore float64         `json:"total_score"`
	RiskLevel  model.RiskLevel `json:"risk_level"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Request asks for one notification action to be carried out. Config is the
// action's channel-specific blob, passed through uninterpreted.
type Request struct {
	Kind    model.ActionKind  `json:"kind"`
	Config  map[string]string `json:"config,omitempty"`
	Payload Payload           `json:"payload"`
}

// Dispatcher is the outbound notification boundary. Implementations own the
// wire formats; the rule engine only hands them requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// Func adapts a function to the Dispatcher interface, for tests and simple
// hosts.
type Func func(ctx context.Context, req Request) error

func (f Func) Dispatch(ctx context.Context, req Request) error {
	return f(ctx, req)
}
