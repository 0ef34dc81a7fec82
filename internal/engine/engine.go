package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"riskwatch/internal/alerts"
	"riskwatch/internal/config"
	"riskwatch/internal/history"
	"riskwatch/internal/model"
	"riskwatch/internal/rules"
	"riskwatch/internal/scoring"
	"riskwatch/internal/storage"
	"riskwatch/internal/trend"
)

// Engine owns one evaluation pipeline: catalogue snapshot in, RiskScore
// out, rules evaluated, history appended. The catalogue and config are
// hot-swappable; everything else is rebuilt per pass from the current
// config.
type Engine struct {
	logger  *slog.Logger
	history *history.Store
	alerts  *alerts.Store
	rules   *rules.Engine
	repo    rules.Repository
	store   storage.Store
	clock   func() time.Time

	cfg      atomic.Value
	catalog  atomic.Value
	snapshot atomic.Value

	mu      sync.Mutex
	ruleSet []*model.AlertRule

	dayMu      sync.Mutex
	day        time.Time
	firedToday int

	started time.Time
}

func NewEngine(cfg *config.Config, logger *slog.Logger, historyStore *history.Store, alertsStore *alerts.Store, ruleEngine *rules.Engine, repo rules.Repository, store storage.Store) *Engine {
	e := &Engine{
		logger:  logger,
		history: historyStore,
		alerts:  alertsStore,
		rules:   ruleEngine,
		repo:    repo,
		store:   store,
		clock:   func() time.Time { return time.Now().UTC() },
		started: time.Now().UTC(),
	}
	e.cfg.Store(cfg)
	return e
}

// WithClock overrides the engine's time source for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// UpdateCatalog swaps in a new catalogue snapshot. The caller decides when
// to run the next pass; there is no implicit re-evaluation on data change.
func (e *Engine) UpdateCatalog(cat *model.Catalog) {
	if cat == nil {
		return
	}
	e.catalog.Store(cat)
}

func (e *Engine) Catalog() *model.Catalog {
	if v := e.catalog.Load(); v != nil {
		return v.(*model.Catalog)
	}
	return nil
}

// Snapshot returns the most recent RiskScore, if a pass has run.
func (e *Engine) Snapshot() (model.RiskScore, bool) {
	if v := e.snapshot.Load(); v != nil {
		score := v.(model.RiskScore)
		return score, !score.Timestamp.IsZero()
	}
	return model.RiskScore{}, false
}

// LoadRules populates the working rule set from the repository, seeding the
// built-in defaults when the repository is empty.
func (e *Engine) LoadRules(ctx context.Context) error {
	cfg := e.config()
	var loaded []model.AlertRule
	if e.repo != nil {
		var err error
		loaded, err = e.repo.Load(ctx)
		if err != nil {
			return err
		}
	}
	if len(loaded) == 0 && cfg.Rules.SeedDefaults {
		loaded = rules.DefaultRules(cfg.Rules.DefaultCooldown)
		if e.repo != nil {
			if err := e.repo.Save(ctx, loaded); err != nil {
				return err
			}
		}
	}
	set := make([]*model.AlertRule, 0, len(loaded))
	for i := range loaded {
		rule := loaded[i]
		set = append(set, &rule)
	}
	e.mu.Lock()
	e.ruleSet = set
	e.mu.Unlock()
	return nil
}

// Rules returns a copy of the working rule set. Each rule is copied via
// the rule engine's per-rule lock so a concurrent evaluation pass cannot
// race with the read of its cooldown bookkeeping.
func (e *Engine) Rules() []model.AlertRule {
	e.mu.Lock()
	set := make([]*model.AlertRule, len(e.ruleSet))
	copy(set, e.ruleSet)
	e.mu.Unlock()
	out := make([]model.AlertRule, 0, len(set))
	for _, r := range set {
		out = append(out, e.rules.Snapshot(r))
	}
	return out
}

// ReplaceRules swaps the working rule set (user edits arrive whole) and
// persists it.
func (e *Engine) ReplaceRules(ctx context.Context, ruleSet []model.AlertRule) error {
	set := make([]*model.AlertRule, 0, len(ruleSet))
	for i := range ruleSet {
		rule := ruleSet[i]
		set = append(set, &rule)
	}
	e.mu.Lock()
	e.ruleSet = set
	e.mu.Unlock()
	if e.repo != nil {
		return e.repo.Save(ctx, ruleSet)
	}
	return nil
}

// TestRule previews whether a rule's conditions hold against the latest
// snapshot. Never mutates rule state.
func (e *Engine) TestRule(rule model.AlertRule) bool {
	score, ok := e.Snapshot()
	if !ok {
		return false
	}
	return e.rules.Test(rule, score)
}

func (e *Engine) Trend() model.TrendResult {
	cfg := e.config()
	return trend.NewAnalyzer(cfg.Trend).Classify(e.history.All())
}

func (e *Engine) Forecast(horizonDays int) model.ForecastResult {
	cfg := e.config()
	return trend.NewAnalyzer(cfg.Trend).Forecast(e.history.All(), horizonDays)
}

// AppendHistory merges an externally supplied daily entry (kafka, REST,
// simulator) into the history store and the persistence layer.
func (e *Engine) AppendHistory(ctx context.Context, entry model.HistoryEntry) {
	e.history.Append(entry)
	if e.store != nil {
		if err := e.store.SaveHistoryEntry(ctx, entry); err != nil && e.logger != nil {
			e.logger.Warn("history persist failed", "err", err)
		}
	}
}

// Process runs one full pass: score the current catalogue, evaluate the
// rule set, fold the result into today's history entry and persist what is
// persistable. A pass always completes; per-rule and per-action failures
// are carried in the outcomes.
func (e *Engine) Process(ctx context.Context) (model.RiskScore, []rules.Outcome) {
	cfg := e.config()
	calc := scoring.NewCalculator(cfg.Scoring, cfg.Catalog.Weights).WithClock(e.clock)
	score := calc.Compute(e.Catalog())
	e.snapshot.Store(score)

	e.mu.Lock()
	set := make([]*model.AlertRule, len(e.ruleSet))
	copy(set, e.ruleSet)
	e.mu.Unlock()

	outcomes := e.rules.Evaluate(ctx, set, score)

	fired := 0
	for _, out := range outcomes {
		if out.Fired {
			fired++
		}
		if e.store != nil {
			for _, action := range out.Actions {
				if err := e.store.SaveDispatch(ctx, e.clock(), out.RuleID, string(action.Kind), action.OK, action.Error); err != nil && e.logger != nil {
					e.logger.Warn("dispatch audit persist failed", "err", err)
				}
			}
		}
	}
	if fired > 0 && e.repo != nil {
		if err := e.repo.Save(ctx, e.Rules()); err != nil && e.logger != nil {
			e.logger.Warn("rule state persist failed", "err", err)
		}
	}

	entry := e.dailyEntry(score, fired, cfg.Engine.TopIndicators)
	e.history.Append(entry)

	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, score); err != nil && e.logger != nil {
			e.logger.Warn("snapshot persist failed", "err", err)
		}
		if err := e.store.SaveHistoryEntry(ctx, entry); err != nil && e.logger != nil {
			e.logger.Warn("history persist failed", "err", err)
		}
	}
	if e.logger != nil {
		e.logger.Info("evaluation pass complete",
			"total", score.Total,
			"level", score.Level,
			"rules", len(set),
			"fired", fired,
		)
	}
	return score, outcomes
}

// dailyEntry folds a pass into today's history entry, accumulating the
// alert count across passes within the same calendar day.
func (e *Engine) dailyEntry(score model.RiskScore, fired int, topN int) model.HistoryEntry {
	today := e.clock().Truncate(24 * time.Hour)
	e.dayMu.Lock()
	if !e.day.Equal(today) {
		e.day = today
		e.firedToday = 0
	}
	e.firedToday += fired
	count := e.firedToday
	e.dayMu.Unlock()

	top := make([]string, 0, topN)
	for _, f := range score.Factors {
		if len(top) >= topN {
			break
		}
		top = append(top, f.IndicatorName)
	}
	return model.HistoryEntry{
		Date:           today,
		Total:          score.Total,
		CategoryScores: score.CategoryScores,
		AlertCount:     count,
		TopIndicators:  top,
	}
}

// Start runs the periodic evaluation loop and drains the external history
// channel until the context is done. The ticker follows the configured
// interval across config reloads.
func (e *Engine) Start(ctx context.Context, in <-chan model.HistoryEntry) {
	go func() {
		interval := e.config().Engine.Interval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.Process(ctx)
			case entry := <-in:
				e.AppendHistory(ctx, entry)
			case <-ctx.Done():
				return
			}
			if next := e.config().Engine.Interval; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}()
}

// Reset drops accumulated in-memory state: history, alerts, the latest
// snapshot and the per-day alert counter. The rule set stays.
func (e *Engine) Reset() {
	e.history.Clear()
	if e.alerts != nil {
		e.alerts.Clear()
	}
	e.snapshot.Store(model.RiskScore{})
	e.dayMu.Lock()
	e.day = time.Time{}
	e.firedToday = 0
	e.dayMu.Unlock()
}
