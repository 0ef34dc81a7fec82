package trend

import (
	"math"
	"testing"
	"time"

	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

func newAnalyzerForTest() *Analyzer {
	return NewAnalyzer(config.DefaultConfig().Trend)
}

func entries(totals ...float64) []model.HistoryEntry {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.HistoryEntry, 0, len(totals))
	for i, v := range totals {
		out = append(out, model.HistoryEntry{Date: base.AddDate(0, 0, i), Total: v})
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestClassifyTooShort(t *testing.T) {
	a := newAnalyzerForTest()
	for _, h := range [][]model.HistoryEntry{nil, entries(55)} {
		got := a.Classify(h)
		if got.Trend != model.TrendStable || got.ChangePercent != 0 {
			t.Fatalf("short history: got %+v", got)
		}
	}
}

func TestClassifyWorseningAtBoundary(t *testing.T) {
	a := newAnalyzerForTest()
	// prior 7 days at 40, recent 7 days at 42: exactly +5%.
	h := entries(append(repeat(40, 7), repeat(42, 7)...)...)
	got := a.Classify(h)
	if got.Trend != model.TrendWorsening {
		t.Fatalf("boundary trend: got %v, want worsening", got.Trend)
	}
	if math.Abs(got.ChangePercent-5) > 1e-9 {
		t.Fatalf("change percent: got %v, want 5", got.ChangePercent)
	}
	if math.Abs(got.AverageScore-42) > 1e-9 {
		t.Fatalf("average: got %v, want 42", got.AverageScore)
	}
}

func TestClassifyImproving(t *testing.T) {
	a := newAnalyzerForTest()
	h := entries(append(repeat(60, 7), repeat(48, 7)...)...)
	got := a.Classify(h)
	if got.Trend != model.TrendImproving {
		t.Fatalf("trend: got %v, want improving", got.Trend)
	}
	if got.ChangePercent >= 0 {
		t.Fatalf("change percent: got %v, want negative", got.ChangePercent)
	}
}

func TestClassifyStableInsideBand(t *testing.T) {
	a := newAnalyzerForTest()
	h := entries(append(repeat(50, 7), repeat(51, 7)...)...)
	got := a.Classify(h)
	if got.Trend != model.TrendStable {
		t.Fatalf("trend: got %v, want stable", got.Trend)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	a := newAnalyzerForTest()
	h := entries(append(repeat(40, 7), repeat(60, 7)...)...)
	before := make([]model.HistoryEntry, len(h))
	copy(before, h)
	a.Classify(h)
	a.Forecast(h, 7)
	for i := range h {
		if h[i].Total != before[i].Total || !h[i].Date.Equal(before[i].Date) {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestForecastTooShort(t *testing.T) {
	a := newAnalyzerForTest()
	got := a.Forecast(entries(10, 20, 30), 7)
	if got.PredictedScore != 50 || got.Confidence != 0.5 || got.Direction != model.ForecastStable {
		t.Fatalf("short forecast: got %+v", got)
	}
}

func TestForecastLinearSeries(t *testing.T) {
	a := newAnalyzerForTest()
	h := entries(10, 20, 30, 40, 50, 60, 70)
	got := a.Forecast(h, 1)
	// Fitted line is 10 + 10x; next index is 7.
	if math.Abs(got.PredictedScore-80) > 1e-9 {
		t.Fatalf("predicted: got %v, want 80", got.PredictedScore)
	}
	if got.Direction != model.ForecastUp {
		t.Fatalf("direction: got %v, want up", got.Direction)
	}
	// Variance of 10..70 is 400, so confidence clamps at the floor.
	if got.Confidence != 0.1 {
		t.Fatalf("confidence: got %v, want 0.1", got.Confidence)
	}
}

func TestForecastClampedToRange(t *testing.T) {
	a := newAnalyzerForTest()
	h := entries(10, 20, 30, 40, 50, 60, 70)
	got := a.Forecast(h, 30)
	if got.PredictedScore != 100 {
		t.Fatalf("clamped high: got %v", got.PredictedScore)
	}
	down := a.Forecast(entries(70, 60, 50, 40, 30, 20, 10), 30)
	if down.PredictedScore != 0 {
		t.Fatalf("clamped low: got %v", down.PredictedScore)
	}
	if down.Direction != model.ForecastDown {
		t.Fatalf("direction: got %v, want down", down.Direction)
	}
}

func TestForecastFlatSeries(t *testing.T) {
	a := newAnalyzerForTest()
	got := a.Forecast(entries(repeat(50, 7)...), 7)
	if math.Abs(got.PredictedScore-50) > 1e-9 {
		t.Fatalf("flat predicted: got %v", got.PredictedScore)
	}
	if got.Direction != model.ForecastStable {
		t.Fatalf("flat direction: got %v", got.Direction)
	}
	// Zero variance clamps confidence at the ceiling.
	if got.Confidence != 0.9 {
		t.Fatalf("flat confidence: got %v", got.Confidence)
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	a := NewSimulator(42).Generate(30, end)
	b := NewSimulator(42).Generate(30, end)
	if len(a) != 30 || len(b) != 30 {
		t.Fatalf("lengths: %d %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Total != b[i].Total || a[i].AlertCount != b[i].AlertCount {
			t.Fatalf("divergence at %d", i)
		}
	}
	for i := 1; i < len(a); i++ {
		if !a[i].Date.After(a[i-1].Date) {
			t.Fatalf("dates not ascending at %d", i)
		}
	}
	for _, e := range a {
		if e.Total < 0 || e.Total > 100 {
			t.Fatalf("simulated total %v outside [0,100]", e.Total)
		}
	}
}
