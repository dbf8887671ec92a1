// Package channel defines the contract between a method channel host and the
// plugins attached to it.
//
// A plugin implements Handler and attaches itself through a Registrar. For every
// incoming call the host passes a Result, and the handler completes it exactly once
// with a success value, an error, or NotImplemented.
package channel

import (
	"errors"
	"fmt"

	"libgit2dart/message"
)

// Result is the one-shot completion sink for a single call.
type Result interface {
	Success(value any)
	Error(code, message string, details any)
	NotImplemented()
}

// Handler processes calls arriving on one channel.
type Handler interface {
	HandleMethodCall(call *message.MethodCall, result Result)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(call *message.MethodCall, result Result)

func (f HandlerFunc) HandleMethodCall(call *message.MethodCall, result Result) {
	f(call, result)
}

// Registrar is the registration hook a host exposes to plugins.
// Setting a nil handler detaches the channel.
type Registrar interface {
	SetMethodCallHandler(name string, h Handler)
}

// ErrNotImplemented is what callers see when the host has no handler for a method.
// It is an expected outcome, a capability check, not a failure of the host.
var ErrNotImplemented = errors.New("method not implemented")

// PlatformError is an error outcome reported by a handler.
type PlatformError struct {
	Code    string
	Message string
	Details []byte // codec-encoded, nil when absent
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform error %s", e.Code)
	}
	return fmt.Sprintf("platform error %s: %s", e.Code, e.Message)
}
