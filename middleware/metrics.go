package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"libgit2dart/message"
)

// Metrics counts calls by channel, method and status and observes their
// duration. Collectors already registered on reg are reused.
func Metrics(reg prometheus.Registerer) Middleware {
	calls := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libgit2dart",
		Name:      "method_calls_total",
		Help:      "Method calls handled, by channel, method and outcome.",
	}, []string{"channel", "method", "status"}))

	duration := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "libgit2dart",
		Name:      "method_call_duration_seconds",
		Help:      "Time spent handling a method call.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"channel", "method"}))

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall) *message.Response {
			start := time.Now()
			resp := next(ctx, call)
			duration.WithLabelValues(call.Channel, call.Method).Observe(time.Since(start).Seconds())
			calls.WithLabelValues(call.Channel, call.Method, resp.Status.String()).Inc()
			return resp
		}
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
