// Package server hosts method channels over a stream connection.
//
// Plugins attach with SetMethodCallHandler (the server is a channel.Registrar).
// Callers connect, send MethodCall frames and receive one Response frame per
// call, matched by sequence number.
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each call: go handleCall
//	    → Codec.Decode → middleware chain → dispatch → plugin Handler → Codec.Encode → write reply
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"libgit2dart/channel"
	"libgit2dart/codec"
	"libgit2dart/message"
	"libgit2dart/middleware"
	"libgit2dart/protocol"
	"libgit2dart/registry"
)

// Server routes calls to the handler registered for their channel.
type Server struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string]channel.Handler

	listener    net.Listener
	ready       chan struct{}
	wg          sync.WaitGroup
	shutdown    atomic.Bool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	registry      registry.Registry
	advertiseAddr string
	ttl           int64
	version       string

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMiddleware appends middlewares; the first one runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, mws...) }
}

// WithRegistration sets the lease TTL in seconds and the version advertised
// for every channel.
func WithRegistration(ttl int64, version string) Option {
	return func(s *Server) {
		s.ttl = ttl
		s.version = version
	}
}

// NewServer returns a Server with no channels attached.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:      slog.Default(),
		handlers: make(map[string]channel.Handler),
		ready:    make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
		ttl:      10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMethodCallHandler attaches h to the named channel, replacing any previous
// handler. A nil h detaches the channel.
func (s *Server) SetMethodCallHandler(name string, h channel.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == nil {
		delete(s.handlers, name)
		return
	}
	s.handlers[name] = h
}

// Channels lists the names of attached channels.
func (s *Server) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, nil before Ready.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.listener.Addr()
	default:
		return nil
	}
}

// Serve listens on address and handles connections until Shutdown.
//
// When reg is non-nil every attached channel is registered under
// advertiseAddr, which must be routable for callers (":8080" is not).
func (s *Server) Serve(network, address, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrapf(err, "listening on %s %s", network, address)
	}
	s.listener = listener

	// Build the chain once; the dispatch step is innermost.
	s.handler = middleware.Chain(s.middlewares...)(s.dispatch)

	if reg != nil {
		if advertiseAddr == "" {
			advertiseAddr = listener.Addr().String()
		}
		s.registry = reg
		s.advertiseAddr = advertiseAddr
		if err := s.registerChannels(); err != nil {
			listener.Close()
			return err
		}
	}

	close(s.ready)
	s.log.Info("method channel host listening", "addr", listener.Addr().String(), "channels", s.Channels())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) registerChannels() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range s.Channels() {
		err := s.registry.Register(ctx, name, registry.Instance{
			Addr:     s.advertiseAddr,
			Weight:   1,
			Version:  s.version,
			Platform: runtime.GOOS,
		}, s.ttl)
		if err != nil {
			return errors.Wrapf(err, "registering channel %s", name)
		}
	}
	return nil
}

// handleConn reads frames sequentially and hands each call to its own
// goroutine. Replies share a per-connection write lock so frames never
// interleave.
func (s *Server) handleConn(conn net.Conn) {
	s.trackConn(conn, true)
	defer s.trackConn(conn, false)
	defer conn.Close()

	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !s.shutdown.Load() {
				s.log.Debug("closing connection", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		switch header.MsgType {
		case protocol.MsgTypeHeartbeat:
			continue
		case protocol.MsgTypeReply:
			s.log.Warn("unexpected reply frame from caller", "remote", conn.RemoteAddr().String(), "seq", header.Seq)
			continue
		}

		s.wg.Add(1)
		go s.handleCall(header, body, conn, writeMu)
	}
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleCall(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))

	var resp *message.Response
	call := &message.MethodCall{}
	if err := c.Decode(body, call); err != nil {
		resp = message.Failure(call, "decode", fmt.Sprintf("malformed method call: %v", err))
	} else {
		resp = s.handler(codec.NewContext(context.Background(), c), call)
	}

	result, err := c.Encode(resp)
	if err != nil {
		s.log.Error("encoding reply", "call", call.String(), "error", err)
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeReply,
		Seq:       header.Seq,
	}
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		s.log.Warn("writing reply", "call", call.String(), "error", err)
	}
}

// dispatch hands call to its channel's handler and waits for the single
// outcome. Unknown channels are not implemented; a handler that never answers
// before ctx ends yields a timeout error.
func (s *Server) dispatch(ctx context.Context, call *message.MethodCall) *message.Response {
	s.mu.RLock()
	h, ok := s.handlers[call.Channel]
	s.mu.RUnlock()

	if !ok {
		return message.NotImplemented(call)
	}

	rec := channel.NewRecorder(s.log, codec.FromContext(ctx), call)
	h.HandleMethodCall(call, rec)

	select {
	case <-rec.Done():
		return rec.Response()
	case <-ctx.Done():
		return message.Failure(call, middleware.CodeTimeout, "handler did not respond")
	}
}

// Shutdown deregisters every channel, stops accepting, and waits up to timeout
// for in-flight calls before closing the remaining connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	select {
	case <-s.ready:
	default:
		return errors.New("server is not serving")
	}

	if s.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		for _, name := range s.Channels() {
			if err := s.registry.Deregister(ctx, name, s.advertiseAddr); err != nil {
				s.log.Warn("deregistering channel", "channel", name, "error", err)
			}
		}
		cancel()
	}

	// Flag first so the Accept error is recognized as intentional.
	s.shutdown.Store(true)
	s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.New("timeout waiting for in-flight calls to finish")
	}

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	return err
}
