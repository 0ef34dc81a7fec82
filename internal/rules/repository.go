package rules

import (
	"context"

	"github.com/google/uuid"

	"riskwatch/internal/model"
)

// Repository persists the alert-rule set. The engine holds no storage
// dependency of its own; the host loads rules at startup and saves the
// engine's LastTriggered/TriggerCount deltas after each pass.
type Repository interface {
	Load(ctx context.Context) ([]model.AlertRule, error)
	Save(ctx context.Context, ruleSet []model.AlertRule) error
}

// DefaultRules is the built-in starter set seeded when the repository comes
// up empty.
func DefaultRules(cooldownMinutes int) []model.AlertRule {
	internal := model.AlertAction{Kind: model.ActionInternal, Enabled: true}
	return []model.AlertRule{
		{
			ID:          uuid.NewString(),
			Name:        "High overall risk",
			Description: "Total risk score reached the high band",
			Enabled:     true,
			Conditions: []model.AlertCondition{
				{Kind: model.CondRiskScore, Operator: model.OpGTE, Threshold: 70},
			},
			Actions:         []model.AlertAction{internal},
			Priority:        model.PriorityP1,
			CooldownMinutes: cooldownMinutes,
		},
		{
			ID:          uuid.NewString(),
			Name:        "Critical overall risk",
			Description: "Total risk score reached the critical band",
			Enabled:     true,
			Conditions: []model.AlertCondition{
				{Kind: model.CondRiskScore, Operator: model.OpGTE, Threshold: 90},
			},
			Actions: []model.AlertAction{
				internal,
				{Kind: model.ActionEmail, Config: map[string]string{"list": "risk-oncall"}, Enabled: true},
			},
			Priority:        model.PriorityP0,
			CooldownMinutes: cooldownMinutes,
		},
		{
			ID:          uuid.NewString(),
			Name:        "Risk score swing",
			Description: "Total risk score moved sharply against its reference",
			Enabled:     false,
			Conditions: []model.AlertCondition{
				{Kind: model.CondTrendChange, Operator: model.OpGT, Threshold: 50},
			},
			Actions:         []model.AlertAction{internal},
			Priority:        model.PriorityP2,
			CooldownMinutes: cooldownMinutes,
		},
	}
}
