package channel

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libgit2dart/codec"
	"libgit2dart/message"
)

var testCall = &message.MethodCall{Channel: "libgit2dart", Method: "getPlatformVersion"}

func TestRecorderSuccess(t *testing.T) {
	c := codec.GetCodec(codec.CodecTypeJSON)
	r := NewRecorder(slog.Default(), c, testCall)
	assert.Nil(t, r.Response())

	r.Success("Linux 6.1")

	<-r.Done()
	resp := r.Response()
	require.NotNil(t, resp)
	assert.Equal(t, message.StatusSuccess, resp.Status)

	var v string
	require.NoError(t, c.DecodeValue(resp.Result, &v))
	assert.Equal(t, "Linux 6.1", v)
}

func TestRecorderKeepsFirstOutcome(t *testing.T) {
	r := NewRecorder(nil, codec.GetCodec(codec.CodecTypeBinary), testCall)

	r.NotImplemented()
	r.Success("late")
	r.Error("late", "late", nil)

	resp := r.Response()
	require.NotNil(t, resp)
	assert.Equal(t, message.StatusNotImplemented, resp.Status)
	assert.Nil(t, resp.Result)
}

func TestRecorderError(t *testing.T) {
	c := codec.GetCodec(codec.CodecTypeBinary)
	r := NewRecorder(nil, c, testCall)

	r.Error("bad_args", "missing path", map[string]string{"arg": "path"})

	resp := r.Response()
	require.NotNil(t, resp)
	assert.Equal(t, message.StatusError, resp.Status)
	assert.Equal(t, "bad_args", resp.ErrorCode)
	assert.Equal(t, "missing path", resp.ErrorMessage)

	var details map[string]string
	require.NoError(t, c.DecodeValue(resp.ErrorDetails, &details))
	assert.Equal(t, "path", details["arg"])
}

func TestRecorderUnencodableSuccess(t *testing.T) {
	r := NewRecorder(nil, codec.GetCodec(codec.CodecTypeJSON), testCall)

	r.Success(make(chan int))

	resp := r.Response()
	require.NotNil(t, resp)
	assert.Equal(t, message.StatusError, resp.Status)
	assert.Equal(t, "encode", resp.ErrorCode)
}

func TestPlatformErrorMessage(t *testing.T) {
	assert.Equal(t, "platform error busy: try later", (&PlatformError{Code: "busy", Message: "try later"}).Error())
	assert.Equal(t, "platform error busy", (&PlatformError{Code: "busy"}).Error())
}

func TestHandlerFunc(t *testing.T) {
	var got string
	h := HandlerFunc(func(call *message.MethodCall, result Result) {
		got = call.Method
		result.NotImplemented()
	})

	r := NewRecorder(nil, codec.GetCodec(codec.CodecTypeJSON), testCall)
	h.HandleMethodCall(testCall, r)

	assert.Equal(t, "getPlatformVersion", got)
	assert.Equal(t, message.StatusNotImplemented, r.Response().Status)
}
