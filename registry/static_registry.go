package registry

import (
	"context"
	"sync"
)

// StaticRegistry is an in-memory Registry for single-host setups where the
// caller already knows the host address. TTLs are ignored.
type StaticRegistry struct {
	mu        sync.Mutex
	instances map[string][]Instance
	watchers  map[string][]chan []Instance
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		instances: make(map[string][]Instance),
		watchers:  make(map[string][]chan []Instance),
	}
}

// StaticFor returns a StaticRegistry with addrs serving channel.
func StaticFor(channel string, addrs ...string) *StaticRegistry {
	r := NewStaticRegistry()
	for _, addr := range addrs {
		r.instances[channel] = append(r.instances[channel], Instance{Addr: addr, Weight: 1})
	}
	return r
}

func (r *StaticRegistry) Register(ctx context.Context, channel string, instance Instance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.instances[channel]
	for i := range list {
		if list[i].Addr == instance.Addr {
			list[i] = instance
			r.notify(channel)
			return nil
		}
	}
	r.instances[channel] = append(list, instance)
	r.notify(channel)
	return nil
}

func (r *StaticRegistry) Deregister(ctx context.Context, channel string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.instances[channel]
	for i := range list {
		if list[i].Addr == addr {
			r.instances[channel] = append(list[:i:i], list[i+1:]...)
			r.notify(channel)
			return nil
		}
	}
	return nil
}

func (r *StaticRegistry) Discover(ctx context.Context, channel string) ([]Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Instance(nil), r.instances[channel]...), nil
}

func (r *StaticRegistry) Watch(ctx context.Context, channel string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	r.mu.Lock()
	r.watchers[channel] = append(r.watchers[channel], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[channel]
		for i := range ws {
			if ws[i] == ch {
				r.watchers[channel] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// notify must be called with mu held. Slow watchers only see the latest list.
func (r *StaticRegistry) notify(channel string) {
	snapshot := append([]Instance(nil), r.instances[channel]...)
	for _, ch := range r.watchers[channel] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
