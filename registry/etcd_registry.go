package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix roots every channel entry:
//
//	/libgit2dart/channels/{channel}/{addr} -> JSON Instance
//
// Entries carry a TTL lease so a crashed host disappears on its own.
const KeyPrefix = "/libgit2dart/channels/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	log    *slog.Logger
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(log *slog.Logger, endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to etcd")
	}
	return &EtcdRegistry{client: c, log: log}, nil
}

func channelPrefix(channel string) string {
	return KeyPrefix + channel + "/"
}

// Register stores instance under a fresh lease of ttl seconds and keeps the
// lease alive in the background until Close.
func (r *EtcdRegistry) Register(ctx context.Context, channel string, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "granting lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := channelPrefix(channel) + instance.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "registering %s", key)
	}

	// The keepalive must outlive ctx, which usually only covers registration.
	ch, err := r.client.KeepAlive(context.WithoutCancel(ctx), lease.ID)
	if err != nil {
		return errors.Wrap(err, "starting lease keepalive")
	}

	go func() {
		for range ch {
		}
		r.log.Debug("lease keepalive stopped", "key", key)
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, channel string, addr string) error {
	_, err := r.client.Delete(ctx, channelPrefix(channel)+addr)
	return errors.Wrapf(err, "deregistering %s on %s", addr, channel)
}

// Watch emits the full instance list for channel every time it changes, until
// ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, channel string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		defer close(ch)
		for range r.client.Watch(ctx, channelPrefix(channel), clientv3.WithPrefix()) {
			instances, err := r.Discover(ctx, channel)
			if err != nil {
				r.log.Warn("rediscovering channel after change", "channel", channel, "error", err)
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r *EtcdRegistry) Discover(ctx context.Context, channel string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, channelPrefix(channel), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "discovering %s", channel)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.log.Warn("skipping malformed registry entry", "key", string(kv.Key), "error", err)
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
