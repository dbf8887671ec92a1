package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"libgit2dart/message"
)

// RateLimit admits at most r calls per second with bursts of burst, using a
// token bucket shared by every call passing through it.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) *message.Response {
			if !limiter.Allow() {
				return message.Failure(call, CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, call)
		}
	}
}
