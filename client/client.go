// Package client is the caller side of a method channel.
//
// A MethodChannel resolves the hosts serving its channel through a registry,
// picks one per call with a balancer, and borrows a pooled transport to it.
package client

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"libgit2dart/channel"
	"libgit2dart/codec"
	"libgit2dart/loadbalance"
	"libgit2dart/message"
	"libgit2dart/middleware"
	"libgit2dart/registry"
	"libgit2dart/transport"
)

type MethodChannel struct {
	name      string
	log       *slog.Logger
	registry  registry.Registry
	balancer  loadbalance.Balancer
	codecType codec.CodecType
	poolSize  int
	heartbeat time.Duration
	dialer    net.Dialer

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	mu    sync.Mutex
	pools map[string]*pool
}

// pool holds up to size transports to one address. Transports are borrowed
// exclusively for the duration of a call.
type pool struct {
	idle    chan *transport.ClientTransport
	created int
}

type Option func(*MethodChannel)

func WithLogger(log *slog.Logger) Option {
	return func(c *MethodChannel) { c.log = log }
}

func WithCodec(ct codec.CodecType) Option {
	return func(c *MethodChannel) { c.codecType = ct }
}

func WithPoolSize(n int) Option {
	return func(c *MethodChannel) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

func WithHeartbeat(d time.Duration) Option {
	return func(c *MethodChannel) { c.heartbeat = d }
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *MethodChannel) { c.dialer.Timeout = d }
}

// WithMiddleware wraps every round trip; the first one runs outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *MethodChannel) { c.middlewares = append(c.middlewares, mws...) }
}

// NewMethodChannel returns a caller for the channel called name.
func NewMethodChannel(name string, reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *MethodChannel {
	c := &MethodChannel{
		name:      name,
		log:       slog.Default(),
		registry:  reg,
		balancer:  bal,
		codecType: codec.CodecTypeJSON,
		poolSize:  4,
		heartbeat: transport.DefaultHeartbeat,
		pools:     make(map[string]*pool),
	}
	c.dialer.Timeout = 5 * time.Second
	for _, opt := range opts {
		opt(c)
	}
	c.handler = middleware.Chain(c.middlewares...)(c.roundTrip)
	return c
}

func (c *MethodChannel) Name() string {
	return c.name
}

// InvokeMethod calls method with args and decodes the success value into reply.
// args may be nil; reply may be nil when the value is not needed.
//
// A method the host does not implement yields channel.ErrNotImplemented, a
// handler failure yields *channel.PlatformError.
func (c *MethodChannel) InvokeMethod(ctx context.Context, method string, args any, reply any) error {
	cdc := codec.GetCodec(c.codecType)

	call := &message.MethodCall{Channel: c.name, Method: method}
	if args != nil {
		data, err := cdc.EncodeValue(args)
		if err != nil {
			return errors.Wrapf(err, "encoding arguments for %s", method)
		}
		call.Arguments = data
	}

	resp := c.handler(ctx, call)

	switch resp.Status {
	case message.StatusSuccess:
		if reply == nil {
			return nil
		}
		return errors.Wrapf(cdc.DecodeValue(resp.Result, reply), "decoding result of %s", method)
	case message.StatusNotImplemented:
		return channel.ErrNotImplemented
	default:
		return &channel.PlatformError{
			Code:    resp.ErrorCode,
			Message: resp.ErrorMessage,
			Details: resp.ErrorDetails,
		}
	}
}

func (c *MethodChannel) roundTrip(ctx context.Context, call *message.MethodCall) *message.Response {
	instances, err := c.registry.Discover(ctx, c.name)
	if err != nil {
		return message.Failure(call, middleware.CodeUnavailable, err.Error())
	}
	if len(instances) == 0 {
		return message.Failure(call, middleware.CodeUnavailable, registry.ErrNoInstances.Error())
	}

	instance, err := c.balancer.Pick(call.Method, instances)
	if err != nil {
		return message.Failure(call, middleware.CodeUnavailable, err.Error())
	}

	t, err := c.getTransport(ctx, instance.Addr)
	if err != nil {
		return message.Failure(call, middleware.CodeUnavailable, err.Error())
	}
	defer c.putTransport(instance.Addr, t)

	seq, ch, err := t.Send(call)
	if err != nil {
		t.Close()
		return message.Failure(call, middleware.CodeUnavailable, err.Error())
	}

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		t.Forget(seq)
		return message.Failure(call, middleware.CodeTimeout, ctx.Err().Error())
	case <-t.Closed():
		select {
		case resp := <-ch:
			return resp
		default:
			t.Forget(seq)
			return message.Failure(call, middleware.CodeUnavailable, transport.ErrClosed.Error())
		}
	}
}

func (c *MethodChannel) getTransport(ctx context.Context, addr string) (*transport.ClientTransport, error) {
	c.mu.Lock()
	p, ok := c.pools[addr]
	if !ok {
		p = &pool{idle: make(chan *transport.ClientTransport, c.poolSize)}
		c.pools[addr] = p
	}

	for {
		select {
		case t := <-p.idle:
			if isClosed(t) {
				p.created--
				continue
			}
			c.mu.Unlock()
			return t, nil
		default:
		}

		if p.created < c.poolSize {
			p.created++
			c.mu.Unlock()

			conn, err := c.dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				c.mu.Lock()
				p.created--
				c.mu.Unlock()
				return nil, errors.Wrapf(err, "dialing %s", addr)
			}
			return transport.NewClientTransport(c.log, conn, c.codecType, c.heartbeat), nil
		}
		c.mu.Unlock()

		// At capacity: wait for a transport to come back.
		select {
		case t := <-p.idle:
			if !isClosed(t) {
				return t, nil
			}
			c.mu.Lock()
			p.created--
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isClosed(t *transport.ClientTransport) bool {
	select {
	case <-t.Closed():
		return true
	default:
		return false
	}
}

func (c *MethodChannel) putTransport(addr string, t *transport.ClientTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pools[addr]
	select {
	case <-t.Closed():
		p.created--
	default:
		p.idle <- t
	}
}

// Close closes every idle transport. Calls in flight keep theirs until they return.
func (c *MethodChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for addr, p := range c.pools {
		for {
			select {
			case t := <-p.idle:
				t.Close()
				p.created--
				continue
			default:
			}
			break
		}
		if p.created == 0 {
			delete(c.pools, addr)
		}
	}
	return nil
}
