package ingest

import (
	"strings"
	"testing"
	"time"
)

func TestParseEntryFullDocument(t *testing.T) {
	doc := `{
		"date": "2026-08-27T00:00:00Z",
		"total": 63.2,
		"category_scores": {"ops": 70.1, "fin": 55.4},
		"alert_count": 2,
		"top_indicators": ["ind-latency", "ind-fraud"]
	}`
	entry, err := ParseEntry([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entry.Total != 63.2 || entry.AlertCount != 2 {
		t.Fatalf("fields: %+v", entry)
	}
	if entry.CategoryScores["ops"] != 70.1 {
		t.Fatalf("category scores: %+v", entry.CategoryScores)
	}
	if len(entry.TopIndicators) != 2 {
		t.Fatalf("top indicators: %+v", entry.TopIndicators)
	}
	want := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	if !entry.Date.Equal(want) {
		t.Fatalf("date: got %v, want %v", entry.Date, want)
	}
}

func TestParseEntryDateFormats(t *testing.T) {
	cases := []string{
		"2026-08-27T10:30:00.123456789Z",
		"2026-08-27T10:30:00Z",
		"2026-08-27",
		"2026/08/27",
		"2026-08-27 10:30:00",
	}
	for _, c := range cases {
		doc := `{"date": "` + c + `", "total": 50}`
		entry, err := ParseEntry([]byte(doc))
		if err != nil {
			t.Fatalf("date %q rejected: %v", c, err)
		}
		if entry.Date.Year() != 2026 || entry.Date.Month() != 8 || entry.Date.Day() != 27 {
			t.Fatalf("date %q parsed as %v", c, entry.Date)
		}
	}
}

func TestParseEntryRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `total: 50`, ""},
		{"missing date", `{"total": 50}`, "empty date"},
		{"bad date", `{"date": "27.08.2026", "total": 50}`, "unsupported date format"},
		{"total too high", `{"date": "2026-08-27", "total": 120}`, "outside [0,100]"},
		{"total negative", `{"date": "2026-08-27", "total": -1}`, "outside [0,100]"},
	}
	for _, c := range cases {
		_, err := ParseEntry([]byte(c.doc))
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if c.want != "" && !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: got %v, want substring %q", c.name, err, c.want)
		}
	}
}
