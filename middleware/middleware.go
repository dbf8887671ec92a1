// Package middleware wraps method call handling with cross-cutting behaviour.
//
// The same HandlerFunc shape is used on both sides of a channel: the host wraps
// its dispatch to plugins, and the caller wraps the round trip to the host.
package middleware

import (
	"context"

	"libgit2dart/message"
)

// Error codes produced by middlewares. Callers see them as PlatformError codes.
const (
	CodeTimeout     = "timeout"
	CodeRateLimited = "rate_limited"
	CodePanic       = "panic"
	CodeUnavailable = "unavailable"
)

type HandlerFunc func(ctx context.Context, call *message.MethodCall) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed runs outermost:
// Chain(A, B, C)(h) == A(B(C(h))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
