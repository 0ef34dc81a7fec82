package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestRiskScoreJSONRoundTrip(t *testing.T) {
	in := RiskScore{
		Total: 62.5,
		CategoryScores: map[string]float64{
			"ops": 70,
			"fin": 55,
		},
		IndicatorScores: map[string]float64{
			"ind-1": 80,
			"ind-2": 20,
		},
		Level:     LevelMedium,
		Timestamp: time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC),
		Factors: []RiskFactor{
			{IndicatorID: "ind-1", IndicatorName: "latency", CategoryName: "Operational", Score: 80, Weight: 1, Contribution: 40},
		},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out RiskScore
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed value:\n in=%+v\nout=%+v", in, out)
	}
}

func TestAlertRuleJSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	in := AlertRule{
		ID:          "rule-1",
		Name:        "critical overall risk",
		Description: "page when the total crosses the critical line",
		Enabled:     true,
		Conditions: []AlertCondition{
			{Kind: CondRiskScore, Operator: OpGTE, Threshold: 90},
			{Kind: CondCategoryScore, Operator: OpGT, Threshold: 80, TargetID: "ops"},
		},
		Actions: []AlertAction{
			{Kind: ActionInternal, Enabled: true},
			{Kind: ActionWebhook, Config: map[string]string{"url": "https://hooks.example/r1"}, Enabled: true},
		},
		Priority:        PriorityP0,
		CooldownMinutes: 30,
		LastTriggered:   &at,
		TriggerCount:    4,
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out AlertRule
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip changed value:\n in=%+v\nout=%+v", in, out)
	}
}

func TestAlertRuleNilLastTriggeredOmitted(t *testing.T) {
	raw, err := json.Marshal(AlertRule{ID: "r", Name: "n"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := doc["last_triggered"]; present {
		t.Fatalf("nil last_triggered serialized: %s", raw)
	}
}
