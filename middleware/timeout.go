package middleware

import (
	"context"
	"time"

	"libgit2dart/message"
)

// Timeout bounds each call by timeout. next runs on the calling goroutine so
// outer middlewares such as Recover still see its panics; handlers waiting on
// ctx stop at the deadline, and a late answer is reported as a timeout.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			resp := next(ctx, call)
			if ctx.Err() != nil {
				return message.Failure(call, CodeTimeout, "request timed out")
			}
			return resp
		}
	}
}
