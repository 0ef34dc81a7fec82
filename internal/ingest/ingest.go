package ingest

import (
	"context"
	"log/slog"

	"riskwatch/internal/model"
)

func SendNonBlocking(ctx context.Context, out chan<- model.HistoryEntry, entry model.HistoryEntry, logger *slog.Logger) bool {
	select {
	case out <- entry:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("history channel full, dropping entry", "date", entry.Date)
		}
		return false
	}
}
