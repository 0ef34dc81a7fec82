package trend

import (
	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

// Analyzer derives trend direction and a short-horizon forecast from a
// date-ordered daily history. All methods are pure and never touch the
// input slice.
type Analyzer struct {
	cfg config.TrendConfig
}

func NewAnalyzer(cfg config.TrendConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Classify compares the mean of the most recent window against the mean of
// the window preceding it. Rising risk reads as worsening.
func (a *Analyzer) Classify(history []model.HistoryEntry) model.TrendResult {
	window := a.cfg.WindowDays
	if len(history) < 2 {
		return model.TrendResult{
			Trend:         model.TrendStable,
			ChangePercent: 0,
			AverageScore:  meanTotal(history),
		}
	}
	recent := tail(history, window)
	previous := tail(history[:len(history)-len(recent)], window)
	recentMean := meanTotal(recent)
	if len(previous) == 0 {
		return model.TrendResult{Trend: model.TrendStable, ChangePercent: 0, AverageScore: recentMean}
	}
	previousMean := meanTotal(previous)
	if previousMean == 0 {
		return model.TrendResult{Trend: model.TrendStable, ChangePercent: 0, AverageScore: recentMean}
	}
	change := (recentMean - previousMean) / previousMean * 100
	direction := model.TrendStable
	if change >= a.cfg.StableBand {
		direction = model.TrendWorsening
	} else if change <= -a.cfg.StableBand {
		direction = model.TrendImproving
	}
	return model.TrendResult{
		Trend:         direction,
		ChangePercent: change,
		AverageScore:  recentMean,
	}
}

// Forecast fits an ordinary least-squares line through the most recent
// window of totals and extrapolates horizonDays forward. Confidence drops
// as in-sample variance rises.
func (a *Analyzer) Forecast(history []model.HistoryEntry, horizonDays int) model.ForecastResult {
	window := a.cfg.ForecastWindow
	if horizonDays < 1 {
		horizonDays = 1
	}
	if len(history) < window {
		return model.ForecastResult{
			PredictedScore: 50,
			Confidence:     0.5,
			Direction:      model.ForecastStable,
		}
	}
	recent := tail(history, window)
	n := len(recent)

	// OLS over a 0-based day index.
	var sumX, sumY, sumXY, sumXX float64
	for i, entry := range recent {
		x := float64(i)
		y := entry.Total
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	var slope, intercept float64
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
		intercept = (sumY - slope*sumX) / fn
	} else {
		intercept = sumY / fn
	}

	predicted := intercept + slope*float64(n+horizonDays-1)
	if predicted < 0 {
		predicted = 0
	} else if predicted > 100 {
		predicted = 100
	}

	confidence := 1 - variance(recent)/100
	if confidence < 0.1 {
		confidence = 0.1
	} else if confidence > 0.9 {
		confidence = 0.9
	}

	direction := model.ForecastStable
	if slope > a.cfg.SlopeThreshold {
		direction = model.ForecastUp
	} else if slope < -a.cfg.SlopeThreshold {
		direction = model.ForecastDown
	}

	return model.ForecastResult{
		PredictedScore: predicted,
		Confidence:     confidence,
		Direction:      direction,
	}
}

func tail(entries []model.HistoryEntry, n int) []model.HistoryEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func meanTotal(entries []model.HistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entries {
		sum += e.Total
	}
	return sum / float64(len(entries))
}

// variance is the population variance of the totals, accumulated in a
// single Welford pass.
func variance(entries []model.HistoryEntry) float64 {
	if len(entries) <= 1 {
		return 0
	}
	var n int
	var mean float64
	var m2 float64
	for _, e := range entries {
		n++
		diff := e.Total - mean
		mean += diff / float64(n)
		m2 += diff * (e.Total - mean)
	}
	return m2 / float64(n)
}
