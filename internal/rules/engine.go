package rules

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"riskwatch/internal/dispatch"
	"riskwatch/internal/model"
)

// trendChangeBand is the fixed dead band of the trend_change condition: the
// condition holds when the current total sits more than this far from the
// reference value carried in the threshold field.
const trendChangeBand = 5.0

type Clock func() time.Time

// ActionStatus records the outcome of one dispatch attempt.
type ActionStatus struct {
	Kind  model.ActionKind `json:"kind"`
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
}

// Outcome is the per-rule result of one evaluation pass.
type Outcome struct {
	RuleID   string         `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	Fired    bool           `json:"fired"`
	Cooling  bool           `json:"cooling"`
	Actions  []ActionStatus `json:"actions,omitempty"`
}

// Engine evaluates alert rules against a scoring snapshot. The only state
// it mutates is the fired rule's LastTriggered/TriggerCount pair, guarded
// by a per-rule lock so overlapping passes cannot double-fire inside a
// cooldown window.
type Engine struct {
	logger     *slog.Logger
	dispatcher dispatch.Dispatcher
	clock      Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(dispatcher dispatch.Dispatcher, logger *slog.Logger) *Engine {
	return &Engine{
		logger:     logger,
		dispatcher: dispatcher,
		clock:      func() time.Time { return time.Now().UTC() },
		locks:      make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the engine's time source.
func (e *Engine) WithClock(clock Clock) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// Evaluate runs every enabled rule against the snapshot. Rules are
// independent; a failing dispatch never aborts the pass or rolls back the
// firing. The returned outcomes cover every rule in the input set.
func (e *Engine) Evaluate(ctx context.Context, ruleSet []*model.AlertRule, score model.RiskScore) []Outcome {
	outcomes := make([]Outcome, 0, len(ruleSet))
	for _, rule := range ruleSet {
		outcomes = append(outcomes, e.evaluateRule(ctx, rule, score))
	}
	return outcomes
}

func (e *Engine) evaluateRule(ctx context.Context, rule *model.AlertRule, score model.RiskScore) Outcome {
	out := Outcome{RuleID: rule.ID, RuleName: rule.Name}
	if !rule.Enabled {
		return out
	}

	lock := e.lockFor(rule.ID)
	lock.Lock()
	now := e.clock()
	if rule.LastTriggered != nil {
		cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
		if cooldown > 0 && now.Sub(*rule.LastTriggered) < cooldown {
			lock.Unlock()
			out.Cooling = true
			return out
		}
	}
	if !conditionsHold(rule.Conditions, score) {
		lock.Unlock()
		return out
	}
	// Cooldown bookkeeping happens-before any dispatch for this rule.
	fired := now
	rule.LastTriggered = &fired
	rule.TriggerCount++
	lock.Unlock()

	out.Fired = true
	out.Actions = e.dispatchAll(ctx, rule, score, now)
	if e.logger != nil {
		e.logger.Warn("alert rule fired",
			"rule_id", rule.ID,
			"rule", rule.Name,
			"total", score.Total,
			"level", score.Level,
			"trigger_count", rule.TriggerCount,
		)
	}
	return out
}

// Test reports whether the rule's conditions hold right now. No cooldown
// gate, no mutation, no dispatch; used for rule-editor previews.
func (e *Engine) Test(rule model.AlertRule, score model.RiskScore) bool {
	return conditionsHold(rule.Conditions, score)
}

// Snapshot copies a rule under its per-rule lock. Readers must go through
// here: LastTriggered and TriggerCount are written by evaluation passes
// under the same lock.
func (e *Engine) Snapshot(rule *model.AlertRule) model.AlertRule {
	lock := e.lockFor(rule.ID)
	lock.Lock()
	defer lock.Unlock()
	out := *rule
	if rule.LastTriggered != nil {
		t := *rule.LastTriggered
		out.LastTriggered = &t
	}
	return out
}

// dispatchAll fans out every enabled action concurrently so one slow or
// failing channel does not delay the others.
func (e *Engine) dispatchAll(ctx context.Context, rule *model.AlertRule, score model.RiskScore, now time.Time) []ActionStatus {
	payload := dispatch.Payload{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		TotalScore: score.Total,
		RiskLevel:  score.Level,
		Timestamp:  now,
	}
	statuses := make([]ActionStatus, 0, len(rule.Actions))
	type slot struct {
		idx    int
		action model.AlertAction
	}
	var slots []slot
	for _, action := range rule.Actions {
		if !action.Enabled {
			continue
		}
		statuses = append(statuses, ActionStatus{Kind: action.Kind})
		slots = append(slots, slot{idx: len(statuses) - 1, action: action})
	}
	if e.dispatcher == nil || len(slots) == 0 {
		return statuses
	}

	var wg sync.WaitGroup
	for _, s := range slots {
		wg.Add(1)
		go func(s slot) {
			defer wg.Done()
			err := e.dispatcher.Dispatch(ctx, dispatch.Request{
				Kind:    s.action.Kind,
				Config:  s.action.Config,
				Payload: payload,
			})
			if err != nil {
				statuses[s.idx].Error = err.Error()
				if e.logger != nil {
					e.logger.Warn("action dispatch failed",
						"rule_id", rule.ID,
						"kind", s.action.Kind,
						"err", err,
					)
				}
				return
			}
			statuses[s.idx].OK = true
		}(s)
	}
	wg.Wait()
	return statuses
}

func (e *Engine) lockFor(ruleID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.locks[ruleID]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.locks[ruleID] = l
	return l
}

func conditionsHold(conditions []model.AlertCondition, score model.RiskScore) bool {
	for _, cond := range conditions {
		if !conditionTrue(cond, score) {
			return false
		}
	}
	return true
}

func conditionTrue(cond model.AlertCondition, score model.RiskScore) bool {
	switch cond.Kind {
	case model.CondRiskScore:
		return compare(score.Total, cond.Operator, cond.Threshold)
	case model.CondCategoryScore:
		v, ok := score.CategoryScores[cond.TargetID]
		if !ok {
			return false
		}
		return compare(v, cond.Operator, cond.Threshold)
	case model.CondIndicatorValue:
		v, ok := score.IndicatorScores[cond.TargetID]
		if !ok {
			return false
		}
		return compare(v, cond.Operator, cond.Threshold)
	case model.CondTrendChange:
		return math.Abs(score.Total-cond.Threshold) > trendChangeBand
	default:
		return false
	}
}

func compare(value float64, op model.Operator, threshold float64) bool {
	switch op {
	case model.OpGT:
		return value > threshold
	case model.OpGTE:
		return value >= threshold
	case model.OpLT:
		return value < threshold
	case model.OpLTE:
		return value <= threshold
	case model.OpEQ:
		return value == threshold
	case model.OpNEQ:
		return value != threshold
	default:
		return false
	}
}
