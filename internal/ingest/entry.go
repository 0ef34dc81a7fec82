package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"riskwatch/internal/model"
)

// wireEntry is the JSON shape external reporting pipelines publish for one
// day of risk history.
type wireEntry struct {
	Date           string             `json:"date"`
	Total          float64            `json:"total"`
	CategoryScores map[string]float64 `json:"category_scores"`
	AlertCount     int                `json:"alert_count"`
	TopIndicators  []string           `json:"top_indicators"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// ParseEntry decodes one history entry from its wire form, tolerating the
// date formats the pipelines actually emit.
func ParseEntry(data []byte) (model.HistoryEntry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return model.HistoryEntry{}, err
	}
	date, err := ParseDate(w.Date)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	if w.Total < 0 || w.Total > 100 {
		return model.HistoryEntry{}, fmt.Errorf("total %v outside [0,100]", w.Total)
	}
	return model.HistoryEntry{
		Date:           date,
		Total:          w.Total,
		CategoryScores: w.CategoryScores,
		AlertCount:     w.AlertCount,
		TopIndicators:  w.TopIndicators,
	}, nil
}

func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}
