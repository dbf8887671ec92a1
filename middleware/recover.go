package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"libgit2dart/message"
)

// Recover turns a panicking handler into an error response.
func Recover(log *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) (resp *message.Response) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("method handler panicked", "call", call.String(), "panic", r)
					resp = message.Failure(call, CodePanic, fmt.Sprint(r))
				}
			}()
			return next(ctx, call)
		}
	}
}
