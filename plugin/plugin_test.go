package plugin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libgit2dart/channel"
	"libgit2dart/message"
)

type fakePlatform struct {
	name, version string
}

func (f fakePlatform) Name() string    { return f.name }
func (f fakePlatform) Version() string { return f.version }

// countingResult records every completion it receives.
type countingResult struct {
	successes      []any
	errors         []string
	notImplemented int
}

func (r *countingResult) Success(v any) { r.successes = append(r.successes, v) }
func (r *countingResult) Error(code, msg string, details any) {
	r.errors = append(r.errors, code)
}
func (r *countingResult) NotImplemented() { r.notImplemented++ }

func (r *countingResult) calls() int {
	return len(r.successes) + len(r.errors) + r.notImplemented
}

func TestGetPlatformVersion(t *testing.T) {
	p := NewWithPlatform(fakePlatform{"macOS", "14.4.1"})
	r := &countingResult{}

	p.Dispatch(&message.MethodCall{Channel: ChannelName, Method: "getPlatformVersion"}, r)

	require.Equal(t, 1, r.calls())
	assert.Equal(t, []any{"macOS 14.4.1"}, r.successes)
}

func TestGetPlatformVersionIgnoresArguments(t *testing.T) {
	p := NewWithPlatform(fakePlatform{"Linux", "#1 SMP"})

	payloads := [][]byte{nil, []byte("null"), []byte(`{"x":1}`), []byte{0xde, 0xad}}
	for _, args := range payloads {
		r := &countingResult{}
		p.Dispatch(&message.MethodCall{Method: "getPlatformVersion", Arguments: args}, r)

		require.Equal(t, 1, r.calls())
		assert.Equal(t, []any{"Linux #1 SMP"}, r.successes)
	}
}

func TestUnknownMethodsAreNotImplemented(t *testing.T) {
	p := NewWithPlatform(fakePlatform{"macOS", "14.4.1"})

	for _, method := range []string{"foo", "", "GETPLATFORMVERSION", "getplatformversion", "getPlatformVersion ", "doSomethingElse"} {
		t.Run(method, func(t *testing.T) {
			r := &countingResult{}
			p.Dispatch(&message.MethodCall{Method: method, Arguments: []byte(`{"x":1}`)}, r)

			assert.Equal(t, 1, r.calls())
			assert.Equal(t, 1, r.notImplemented)
			assert.Empty(t, r.successes)
			assert.Empty(t, r.errors)
		})
	}
}

func TestHostPlatformVersion(t *testing.T) {
	p := New()
	r := &countingResult{}

	p.HandleMethodCall(&message.MethodCall{Method: "getPlatformVersion"}, r)

	require.Len(t, r.successes, 1)
	v, ok := r.successes[0].(string)
	require.True(t, ok)
	assert.NotEmpty(t, v)
	assert.True(t, strings.HasPrefix(v, HostPlatform().Name()+" "), v)
}

type fakeRegistrar struct {
	handlers map[string]channel.Handler
}

func (f *fakeRegistrar) SetMethodCallHandler(name string, h channel.Handler) {
	f.handlers[name] = h
}

func TestRegisterWith(t *testing.T) {
	reg := &fakeRegistrar{handlers: map[string]channel.Handler{}}

	p := RegisterWith(reg)

	require.Len(t, reg.handlers, 1)
	assert.Same(t, p, reg.handlers[ChannelName])
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, CommandGetPlatformVersion, ParseCommand("getPlatformVersion"))
	assert.Equal(t, CommandUnknown, ParseCommand("GetPlatformVersion"))
	assert.Equal(t, "getPlatformVersion", CommandGetPlatformVersion.String())
	assert.Equal(t, "unknown", CommandUnknown.String())
}
