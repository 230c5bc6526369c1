package middleware

import (
	"context"
	"log/slog"

	"resort/internal/app/commands"
	"resort/internal/app/outbox"
)

// OutboxFlush asks the relay to deliver freshly committed events once a command succeeds.
// The command's result stands even if the flush fails; the relay's poll picks the records up later.
func OutboxFlush(flusher outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if flusher == nil {
		panic("middleware: outbox flusher required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := flusher.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", slog.String("command", cmd.Key()), slog.Any("error", err))
			}
			return res, nil
		})
	}
}
