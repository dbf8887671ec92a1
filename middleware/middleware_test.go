package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libgit2dart/message"
)

var testCall = &message.MethodCall{Channel: "libgit2dart", Method: "getPlatformVersion"}

// okHandler answers every call with a fixed success payload.
func okHandler(ctx context.Context, call *message.MethodCall) *message.Response {
	return &message.Response{Channel: call.Channel, Method: call.Method, Result: []byte(`"ok"`)}
}

func slowHandler(ctx context.Context, call *message.MethodCall) *message.Response {
	time.Sleep(200 * time.Millisecond)
	return okHandler(ctx, call)
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	handler := Logging(testLogger(&buf))(okHandler)

	resp := handler(context.Background(), testCall)

	require.NotNil(t, resp)
	assert.Equal(t, `"ok"`, string(resp.Result))
	assert.Contains(t, buf.String(), "method=getPlatformVersion")
	assert.Contains(t, buf.String(), "status=success")
}

func TestLoggingFailure(t *testing.T) {
	var buf bytes.Buffer
	failing := func(ctx context.Context, call *message.MethodCall) *message.Response {
		return message.Failure(call, "busy", "try later")
	}

	Logging(testLogger(&buf))(failing)(context.Background(), testCall)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "code=busy")
}

func TestTimeoutPass(t *testing.T) {
	handler := Timeout(500 * time.Millisecond)(okHandler)

	resp := handler(context.Background(), testCall)

	assert.Equal(t, message.StatusSuccess, resp.Status)
}

func TestTimeoutExceeded(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(slowHandler)

	resp := handler(context.Background(), testCall)

	assert.Equal(t, message.StatusError, resp.Status)
	assert.Equal(t, CodeTimeout, resp.ErrorCode)
}

func TestRecoverOutsideTimeout(t *testing.T) {
	var buf bytes.Buffer
	panicking := func(ctx context.Context, call *message.MethodCall) *message.Response {
		panic("boom")
	}

	resp := Chain(Recover(testLogger(&buf)), Timeout(time.Second))(panicking)(context.Background(), testCall)

	assert.Equal(t, CodePanic, resp.ErrorCode)
}

func TestTimeoutCancelsContext(t *testing.T) {
	waiting := func(ctx context.Context, call *message.MethodCall) *message.Response {
		<-ctx.Done()
		return message.Failure(call, "cancelled", ctx.Err().Error())
	}

	resp := Timeout(20 * time.Millisecond)(waiting)(context.Background(), testCall)

	assert.Equal(t, CodeTimeout, resp.ErrorCode)
}

func TestRateLimit(t *testing.T) {
	// 1 per second with a burst of 2: two pass, the third is rejected
	handler := RateLimit(1, 2)(okHandler)

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), testCall)
		require.Equal(t, message.StatusSuccess, resp.Status, "call %d", i)
	}

	resp := handler(context.Background(), testCall)
	assert.Equal(t, CodeRateLimited, resp.ErrorCode)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	panicking := func(ctx context.Context, call *message.MethodCall) *message.Response {
		panic("boom")
	}

	resp := Recover(testLogger(&buf))(panicking)(context.Background(), testCall)

	assert.Equal(t, CodePanic, resp.ErrorCode)
	assert.Equal(t, "boom", resp.ErrorMessage)
	assert.Contains(t, buf.String(), "panicked")
}

func TestRetryTransient(t *testing.T) {
	var attempts atomic.Int32
	flaky := func(ctx context.Context, call *message.MethodCall) *message.Response {
		if attempts.Add(1) < 3 {
			return message.Failure(call, CodeUnavailable, "connection refused")
		}
		return okHandler(ctx, call)
	}

	resp := Retry(slog.Default(), 3, time.Millisecond)(flaky)(context.Background(), testCall)

	assert.Equal(t, message.StatusSuccess, resp.Status)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetrySkipsNotImplemented(t *testing.T) {
	var attempts atomic.Int32
	handler := func(ctx context.Context, call *message.MethodCall) *message.Response {
		attempts.Add(1)
		return message.NotImplemented(call)
	}

	resp := Retry(slog.Default(), 3, time.Millisecond)(handler)(context.Background(), testCall)

	assert.Equal(t, message.StatusNotImplemented, resp.Status)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempts atomic.Int32
	handler := func(ctx context.Context, call *message.MethodCall) *message.Response {
		attempts.Add(1)
		cancel()
		return message.Failure(call, CodeTimeout, "request timed out")
	}

	resp := Retry(slog.Default(), 5, time.Hour)(handler)(ctx, testCall)

	assert.Equal(t, CodeTimeout, resp.ErrorCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	notImpl := func(ctx context.Context, call *message.MethodCall) *message.Response {
		return message.NotImplemented(call)
	}

	Metrics(reg)(okHandler)(context.Background(), testCall)
	// A second Metrics on the same registry shares the collectors.
	Metrics(reg)(notImpl)(context.Background(), &message.MethodCall{Channel: "libgit2dart", Method: "foo"})

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 2)

	n, err := testutil.GatherAndCount(reg, "libgit2dart_method_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, call *message.MethodCall) *message.Response {
				order = append(order, name)
				return next(ctx, call)
			}
		}
	}

	handler := Chain(mark("a"), mark("b"), Timeout(500*time.Millisecond))(okHandler)
	resp := handler(context.Background(), testCall)

	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSuccess, resp.Status)
	assert.Equal(t, []string{"a", "b"}, order)
}
