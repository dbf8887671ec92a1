package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"libgit2dart/codec"
	"libgit2dart/message"
)

// Recorder is a Result that turns the first outcome it receives into a
// message.Response. Later invocations are dropped and logged.
type Recorder struct {
	log   *slog.Logger
	codec codec.Codec
	call  *message.MethodCall

	once sync.Once
	done chan struct{}
	resp *message.Response
}

// NewRecorder prepares a Recorder for call; values are encoded with c.
func NewRecorder(log *slog.Logger, c codec.Codec, call *message.MethodCall) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		log:   log,
		codec: c,
		call:  call,
		done:  make(chan struct{}),
	}
}

func (r *Recorder) Success(value any) {
	r.complete(func() *message.Response {
		data, err := r.codec.EncodeValue(value)
		if err != nil {
			return message.Failure(r.call, "encode", fmt.Sprintf("unable to encode result: %v", err))
		}
		return &message.Response{
			Channel: r.call.Channel,
			Method:  r.call.Method,
			Status:  message.StatusSuccess,
			Result:  data,
		}
	})
}

func (r *Recorder) Error(code, msg string, details any) {
	r.complete(func() *message.Response {
		resp := message.Failure(r.call, code, msg)
		if details != nil {
			data, err := r.codec.EncodeValue(details)
			if err != nil {
				r.log.Warn("dropping unencodable error details", "call", r.call.String(), "error", err)
			} else {
				resp.ErrorDetails = data
			}
		}
		return resp
	})
}

func (r *Recorder) NotImplemented() {
	r.complete(func() *message.Response {
		return message.NotImplemented(r.call)
	})
}

func (r *Recorder) complete(build func() *message.Response) {
	fired := false
	r.once.Do(func() {
		fired = true
		r.resp = build()
		close(r.done)
	})
	if !fired {
		r.log.Warn("result already delivered, ignoring", "call", r.call.String())
	}
}

// Done is closed once a result has been delivered.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Response returns the recorded outcome, or nil if none was delivered yet.
func (r *Recorder) Response() *message.Response {
	select {
	case <-r.done:
		return r.resp
	default:
		return nil
	}
}
