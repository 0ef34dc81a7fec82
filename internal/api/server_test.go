package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riskwatch/internal/alerts"
	"riskwatch/internal/config"
	"riskwatch/internal/history"
	"riskwatch/internal/model"
	"riskwatch/internal/rules"
)

type stubCore struct {
	snapshot model.RiskScore
	ruleSet  []model.AlertRule
}

func (s *stubCore) Snapshot() (model.RiskScore, bool) {
	return s.snapshot, !s.snapshot.Timestamp.IsZero()
}
func (s *stubCore) Trend() model.TrendResult {
	return model.TrendResult{Trend: model.TrendStable}
}
func (s *stubCore) Forecast(int) model.ForecastResult { return model.ForecastResult{} }
func (s *stubCore) Rules() []model.AlertRule          { return s.ruleSet }
func (s *stubCore) ReplaceRules(_ context.Context, ruleSet []model.AlertRule) error {
	s.ruleSet = ruleSet
	return nil
}
func (s *stubCore) TestRule(model.AlertRule) bool { return false }
func (s *stubCore) UpdateCatalog(*model.Catalog)  {}
func (s *stubCore) Process(context.Context) (model.RiskScore, []rules.Outcome) {
	return s.snapshot, nil
}
func (s *stubCore) UpdateConfig(*config.Config) {}
func (s *stubCore) Reset()                      {}

func newServerForTest(core *stubCore, alertStore *alerts.Store) *Server {
	return &Server{
		cfg:     config.NewStaticManager(nil),
		history: history.NewStore(10),
		alerts:  alertStore,
		core:    core,
		logger:  nil,
		version: "test",
	}
}

func TestStatusCountsTodaysAlerts(t *testing.T) {
	alertStore := alerts.NewStore(10)
	now := time.Now().UTC()
	alertStore.Add(model.Alert{Timestamp: now, RuleID: "r1", RuleName: "high"})
	alertStore.Add(model.Alert{Timestamp: now, RuleID: "r1", RuleName: "high"})
	alertStore.Add(model.Alert{Timestamp: now.AddDate(0, 0, -3), RuleID: "r2", RuleName: "old"})

	core := &stubCore{ruleSet: []model.AlertRule{{ID: "r1", Name: "high"}}}
	srv := newServerForTest(core, alertStore)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AlertsToday != 2 {
		t.Fatalf("alerts today: got %d, want 2", resp.AlertsToday)
	}
	if resp.RuleCount != 1 {
		t.Fatalf("rule count: got %d", resp.RuleCount)
	}
	if resp.Snapshot != nil {
		t.Fatalf("snapshot should be absent before a pass")
	}
}

func TestRulesPostRejectsEmptyConditions(t *testing.T) {
	core := &stubCore{}
	srv := newServerForTest(core, alerts.NewStore(10))

	body := `[{"name": "vacuous", "enabled": true, "conditions": [], "actions": []}]`
	rec := httptest.NewRecorder()
	srv.handleRules(rec, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code: got %d, want 400", rec.Code)
	}
	if len(core.ruleSet) != 0 {
		t.Fatalf("rule set replaced despite rejection")
	}
}

func TestRulesPostFillsMissingIDs(t *testing.T) {
	core := &stubCore{}
	srv := newServerForTest(core, alerts.NewStore(10))

	body := `[{"name": "named", "enabled": true,
		"conditions": [{"kind": "risk_score", "operator": "gte", "threshold": 70}],
		"actions": [{"kind": "internal_alert", "enabled": true}]}]`
	rec := httptest.NewRecorder()
	srv.handleRules(rec, httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: got %d, body %s", rec.Code, rec.Body.String())
	}
	if len(core.ruleSet) != 1 || core.ruleSet[0].ID == "" {
		t.Fatalf("rule id not filled: %+v", core.ruleSet)
	}
}

func TestForecastValidatesDays(t *testing.T) {
	srv := newServerForTest(&stubCore{}, alerts.NewStore(10))
	for _, q := range []string{"0", "91", "abc"} {
		rec := httptest.NewRecorder()
		srv.handleForecast(rec, httptest.NewRequest(http.MethodGet, "/forecast?days="+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: got %d, want 400", q, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	srv.handleForecast(rec, httptest.NewRequest(http.MethodGet, "/forecast?days=30", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid days rejected: %d", rec.Code)
	}
}
