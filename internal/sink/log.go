package sink

import (
	"context"
	"log/slog"
)

// Log writes one line per notification.
type Log struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLog creates a log writer.
func NewLog(logger *slog.Logger, level slog.Level) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: level}
}

// Name implements Writer.
func (l *Log) Name() string { return "log" }

// Write implements Writer.
func (l *Log) Write(ctx context.Context, events []Event) (int, error) {
	for _, e := range events {
		attrs := []any{
			"id", e.ID,
			"type", e.Type,
			"timestamp", e.Timestamp,
			"received_at", e.ReceivedAt,
			"bytes", len(e.Payload),
		}
		if e.SentAt != nil {
			attrs = append(attrs, "lag", e.ReceivedAt.Sub(*e.SentAt))
		}
		l.logger.Log(ctx, l.level, "notification", attrs...)
	}
	return len(events), nil
}
