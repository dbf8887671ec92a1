package middleware

import (
	"context"
	"log/slog"
	"time"

	"libgit2dart/message"
)

// Retry re-sends calls that failed with a transient code (timeout or
// unavailable), backing off exponentially from baseDelay. Other outcomes,
// including NotImplemented, are returned immediately.
func Retry(log *slog.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) *message.Response {
			resp := next(ctx, call)
			for i := 0; i < maxRetries && retryable(resp); i++ {
				log.Info("retrying method call", "call", call.String(), "attempt", i+1, "code", resp.ErrorCode)

				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return resp
				}
				resp = next(ctx, call)
			}
			return resp
		}
	}
}

func retryable(resp *message.Response) bool {
	if resp.Status != message.StatusError {
		return false
	}
	return resp.ErrorCode == CodeTimeout || resp.ErrorCode == CodeUnavailable
}
