package middleware

import (
	"context"
	"log/slog"
	"time"

	"libgit2dart/message"
)

// Logging logs each call with its outcome and duration.
func Logging(log *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) *message.Response {
			start := time.Now()
			resp := next(ctx, call)

			attrs := []any{
				"channel", call.Channel,
				"method", call.Method,
				"status", resp.Status.String(),
				"duration", time.Since(start),
			}
			if resp.Status == message.StatusError {
				log.Warn("method call failed", append(attrs, "code", resp.ErrorCode, "error", resp.ErrorMessage)...)
			} else {
				log.Debug("method call", attrs...)
			}
			return resp
		}
	}
}
