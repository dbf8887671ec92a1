// Package message defines the envelopes exchanged over a method channel.
//
// A MethodCall travels from the caller to the host, a Response travels back.
// Both get serialized by the codec layer and wrapped in a protocol frame.
package message

import "fmt"

// MethodCall is a single request addressed to a named channel.
//
//   - Channel names the plugin channel, e.g. "libgit2dart".
//   - Method is the command name, e.g. "getPlatformVersion".
//   - Arguments is the codec-encoded argument value, nil when the call has none.
type MethodCall struct {
	Channel   string
	Method    string
	Arguments []byte
}

// HasArguments reports whether the caller supplied an argument payload.
func (c *MethodCall) HasArguments() bool {
	return len(c.Arguments) > 0
}

func (c *MethodCall) String() string {
	return c.Channel + "/" + c.Method
}

// Status tells which of the three possible outcomes a Response carries.
type Status byte

const (
	StatusSuccess        Status = 0
	StatusError          Status = 1
	StatusNotImplemented Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// Response is the single outcome of a MethodCall.
//
// Result is only meaningful for StatusSuccess, the Error* fields only for StatusError.
type Response struct {
	Channel      string
	Method       string
	Status       Status
	Result       []byte
	ErrorCode    string
	ErrorMessage string
	ErrorDetails []byte
}

// NotImplemented builds the response for a call nobody handles.
func NotImplemented(call *MethodCall) *Response {
	return &Response{Channel: call.Channel, Method: call.Method, Status: StatusNotImplemented}
}

// Failure builds an error response without details.
func Failure(call *MethodCall, code, msg string) *Response {
	return &Response{
		Channel:      call.Channel,
		Method:       call.Method,
		Status:       StatusError,
		ErrorCode:    code,
		ErrorMessage: msg,
	}
}
