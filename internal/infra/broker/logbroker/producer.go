// Package logbroker is a Producer that writes outbox messages to the structured log.
// It backs local runs where no broker is available.
package logbroker

import (
	"context"
	"log/slog"
)

type Producer struct {
	Logger *slog.Logger
}

func (p Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.Any("headers", headers),
		slog.String("payload", string(payload)),
	)
	return nil
}
