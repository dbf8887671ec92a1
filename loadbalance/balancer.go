// Package loadbalance picks which host serves a call when several hosts
// register the same channel.
//
//   - RoundRobin:     hosts with equal capacity
//   - WeightedRandom: hosts with different Weight
//   - ConsistentHash: one method sticks to one host while the host set is stable
package loadbalance

import (
	"errors"
	"fmt"
	"strings"

	"libgit2dart/registry"
)

var ErrNoInstances = errors.New("no instances available")

// Balancer is consulted before each call. key is the method name; strategies
// that do not need affinity ignore it. Implementations must be goroutine-safe.
type Balancer interface {
	Pick(key string, instances []registry.Instance) (*registry.Instance, error)
	Name() string
}

// New returns the balancer named by a configuration value.
func New(name string) (Balancer, error) {
	switch strings.ToLower(name) {
	case "", "roundrobin", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted", "weightedrandom", "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistenthash", "consistent_hash":
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", name)
	}
}
