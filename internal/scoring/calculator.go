package scoring

import (
	"sort"
	"strings"
	"time"

	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

// Calculator turns a catalogue snapshot into a RiskScore. It is pure: the
// same catalogue, weight table and scoring config always produce the same
// scores. Only the snapshot timestamp comes from the injected clock.
type Calculator struct {
	cfg     config.ScoringConfig
	weights map[string]float64
	now     func() time.Time
}

func NewCalculator(cfg config.ScoringConfig, categoryWeights map[string]float64) *Calculator {
	return &Calculator{
		cfg:     cfg,
		weights: categoryWeights,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the snapshot timestamp source.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

func (c *Calculator) Compute(cat *model.Catalog) model.RiskScore {
	score := model.RiskScore{
		CategoryScores:  make(map[string]float64),
		IndicatorScores: make(map[string]float64),
		Level:           model.LevelLow,
		Timestamp:       c.now(),
		Factors:         make([]model.RiskFactor, 0),
	}
	if cat == nil || len(cat.Categories) == 0 {
		return score
	}

	weights := c.resolveWeights(cat)
	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}

	var total float64
	for _, category := range cat.Categories {
		catScore := c.categoryScore(category)
		score.CategoryScores[category.ID] = catScore
		w := weights[category.ID]
		if totalWeight > 0 {
			total += catScore * w / totalWeight
		}
		for _, sub := range category.Subcategories {
			for _, ind := range sub.Indicators {
				indScore := c.IndicatorScore(ind)
				score.IndicatorScores[ind.ID] = indScore
				weight := c.priorityWeight(ind.Priority) * w
				contribution := 0.0
				if totalWeight > 0 {
					contribution = indScore * weight / totalWeight
				}
				score.Factors = append(score.Factors, model.RiskFactor{
					IndicatorID:   ind.ID,
					IndicatorName: ind.Name,
					CategoryName:  category.Name,
					Score:         indScore,
					Weight:        weight,
					Contribution:  contribution,
				})
			}
		}
	}

	sort.SliceStable(score.Factors, func(i, j int) bool {
		return score.Factors[i].Contribution > score.Factors[j].Contribution
	})
	score.Total = clamp(total, 0, 100)
	score.Level = c.Classify(score.Total)
	return score
}

// IndicatorScore computes one indicator's score: priority base, damped when
// the indicator is inactive, plus additive name-pattern bonuses, capped at
// 100.
func (c *Calculator) IndicatorScore(ind model.Indicator) float64 {
	base, ok := c.cfg.PriorityBase[string(ind.Priority)]
	if !ok {
		base = c.cfg.DefaultBase
	}
	if ind.Status == model.StatusInactive {
		base *= c.cfg.InactiveFactor
	}
	var bonus float64
	for _, pb := range c.cfg.PatternBonuses {
		if strings.Contains(ind.Name, pb.Contains) {
			bonus += pb.Bonus
		}
	}
	return clamp(base+bonus, 0, 100)
}

// Classify maps a total score onto a risk level using the configured
// ascending thresholds.
func (c *Calculator) Classify(total float64) model.RiskLevel {
	switch {
	case total >= c.cfg.Levels.Critical:
		return model.LevelCritical
	case total >= c.cfg.Levels.High:
		return model.LevelHigh
	case total >= c.cfg.Levels.Medium:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

func (c *Calculator) categoryScore(category model.Category) float64 {
	var weighted, weightSum float64
	for _, sub := range category.Subcategories {
		for _, ind := range sub.Indicators {
			w := c.priorityWeight(ind.Priority)
			weighted += c.IndicatorScore(ind) * w
			weightSum += w
		}
	}
	if weightSum == 0 {
		return 0
	}
	return clamp(weighted/weightSum, 0, 100)
}

func (c *Calculator) priorityWeight(p model.Priority) float64 {
	if w, ok := c.cfg.PriorityWeights[string(p)]; ok {
		return w
	}
	return c.cfg.DefaultWeight
}

// resolveWeights merges the external weight table with the categories
// actually present: ids missing from the table split a 1/n share evenly,
// so a catalogue with any number of top-level categories weighs out
// sensibly.
func (c *Calculator) resolveWeights(cat *model.Catalog) map[string]float64 {
	resolved := make(map[string]float64, len(cat.Categories))
	missing := 0
	for _, category := range cat.Categories {
		if w, ok := c.weights[category.ID]; ok {
			resolved[category.ID] = w
		} else {
			missing++
		}
	}
	if missing > 0 {
		share := 1.0 / float64(missing)
		for _, category := range cat.Categories {
			if _, ok := resolved[category.ID]; !ok {
				resolved[category.ID] = share
			}
		}
	}
	return resolved
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
