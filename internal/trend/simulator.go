package trend

import (
	"math/rand"
	"time"

	"riskwatch/internal/model"
)

// Simulator generates a plausible daily history for demos and tests. It is
// deliberately separate from the Analyzer: the analyzer never calls a RNG,
// and simulated data enters the system through the same history store as
// real data.
type Simulator struct {
	rng        *rand.Rand
	baseline   float64
	drift      float64
	categories []string
	indicators []string
}

func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rng:        rand.New(rand.NewSource(seed)),
		baseline:   45,
		drift:      0.2,
		categories: []string{"strategic", "operational", "financial", "compliance"},
		indicators: []string{"uptime breach", "fraud attempts", "audit backlog", "budget overrun"},
	}
}

// WithCatalog seeds category ids and indicator names from a real catalogue
// so simulated entries reference ids the rest of the system knows.
func (s *Simulator) WithCatalog(cat *model.Catalog) *Simulator {
	if cat == nil || len(cat.Categories) == 0 {
		return s
	}
	s.categories = s.categories[:0]
	s.indicators = s.indicators[:0]
	for _, c := range cat.Categories {
		s.categories = append(s.categories, c.ID)
		for _, sc := range c.Subcategories {
			for _, ind := range sc.Indicators {
				s.indicators = append(s.indicators, ind.Name)
			}
		}
	}
	return s
}

// Generate produces days entries ending at end, one per calendar day, as a
// bounded random walk around the baseline.
func (s *Simulator) Generate(days int, end time.Time) []model.HistoryEntry {
	if days <= 0 {
		return nil
	}
	end = end.UTC().Truncate(24 * time.Hour)
	out := make([]model.HistoryEntry, 0, days)
	score := s.baseline
	for i := days - 1; i >= 0; i-- {
		score += s.drift + s.rng.Float64()*8 - 4
		if score < 5 {
			score = 5
		} else if score > 95 {
			score = 95
		}
		entry := model.HistoryEntry{
			Date:           end.AddDate(0, 0, -i),
			Total:          score,
			CategoryScores: make(map[string]float64, len(s.categories)),
			AlertCount:     s.alertCount(score),
		}
		for _, id := range s.categories {
			entry.CategoryScores[id] = clampScore(score + s.rng.Float64()*20 - 10)
		}
		entry.TopIndicators = s.topIndicators()
		out = append(out, entry)
	}
	return out
}

func (s *Simulator) alertCount(score float64) int {
	if score < 40 {
		return s.rng.Intn(2)
	}
	if score < 70 {
		return 1 + s.rng.Intn(3)
	}
	return 2 + s.rng.Intn(5)
}

func (s *Simulator) topIndicators() []string {
	if len(s.indicators) == 0 {
		return nil
	}
	n := 3
	if n > len(s.indicators) {
		n = len(s.indicators)
	}
	perm := s.rng.Perm(len(s.indicators))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, s.indicators[idx])
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
