package history

import (
	"sort"
	"sync"
	"time"

	"riskwatch/internal/model"
)

// Store keeps a bounded, date-ordered sequence of daily history entries.
// One entry per calendar day: appending a day that already exists replaces
// it.
type Store struct {
	mu      sync.RWMutex
	entries []model.HistoryEntry
	limit   int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 365
	}
	return &Store{limit: limit}
}

func (s *Store) Append(entry model.HistoryEntry) {
	day := entry.Date.UTC().Truncate(24 * time.Hour)
	entry.Date = day
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Date.Equal(day) {
			s.entries[i] = entry
			return
		}
	}
	s.entries = append(s.entries, entry)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Date.Before(s.entries[j].Date)
	})
	if len(s.entries) > s.limit {
		s.entries = append([]model.HistoryEntry{}, s.entries[len(s.entries)-s.limit:]...)
	}
}

func (s *Store) Recent(n int) []model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]model.HistoryEntry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

func (s *Store) All() []model.HistoryEntry {
	return s.Recent(0)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
