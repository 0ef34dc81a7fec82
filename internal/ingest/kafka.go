package ingest

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

// StartKafka consumes externally produced daily history entries from the
// configured topic and forwards them to the history channel.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- model.HistoryEntry, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka history ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka history ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			entry, err := ParseEntry(m.Value)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka history entry rejected", "err", err)
				}
				continue
			}
			SendNonBlocking(ctx, out, entry, logger)
		}
	}()
}
