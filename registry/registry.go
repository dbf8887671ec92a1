// Package registry lets callers find the hosts serving a method channel.
package registry

import (
	"context"
	"errors"
)

// Instance is one host serving a channel.
type Instance struct {
	Addr     string
	Weight   int    // Relative share for weighted balancing
	Version  string // Plugin version served at Addr
	Platform string // GOOS of the host
}

// ErrNoInstances is returned by Discover when nobody serves the channel.
var ErrNoInstances = errors.New("no instances registered")

type Registry interface {
	Register(ctx context.Context, channel string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, channel string, addr string) error
	Discover(ctx context.Context, channel string) ([]Instance, error)
	Watch(ctx context.Context, channel string) <-chan []Instance
}
