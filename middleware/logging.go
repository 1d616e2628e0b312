package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each operation's outcome. Successes
// log at Debug, expected refusals (conflicts, missing records, bad input)
// at Warn, and everything else at Error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		attrs := []any{
			slog.String("op", op.Name),
			slog.String("actor", op.Actor),
			slog.String("target", op.Target),
			slog.Duration("elapsed", elapsed),
		}

		switch outcome := Outcome(err); outcome {
		case "ok":
			logger.DebugContext(ctx, "operation completed", attrs...)
		case "error":
			logger.ErrorContext(ctx, "operation failed", append(attrs, slog.String("error", err.Error()))...)
		default:
			logger.WarnContext(ctx, "operation refused",
				append(attrs, slog.String("outcome", outcome), slog.String("error", err.Error()))...)
		}

		return err
	}
}
