package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libgit2dart/registry"
)

var testInstances = []registry.Instance{
	{Addr: ":8001", Weight: 10},
	{Addr: ":8002", Weight: 5},
	{Addr: ":8003", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	var got []string
	for i := 0; i < 4; i++ {
		inst, err := b.Pick("getPlatformVersion", testInstances)
		require.NoError(t, err)
		got = append(got, inst.Addr)
	}

	assert.Equal(t, []string{":8001", ":8002", ":8003", ":8001"}, got)
}

func TestEmptyInstances(t *testing.T) {
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}, NewConsistentHashBalancer()} {
		_, err := b.Pick("x", nil)
		assert.ErrorIs(t, err, ErrNoInstances, b.Name())
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		inst, err := b.Pick("", testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// 10:5:10, so :8001 should see about twice the traffic of :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick("", []registry.Instance{{Addr: "a"}, {Addr: "b"}})
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, inst.Addr)
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	first, err := b.Pick("getPlatformVersion", testInstances)
	require.NoError(t, err)
	again, err := b.Pick("getPlatformVersion", testInstances)
	require.NoError(t, err)
	assert.Equal(t, first.Addr, again.Addr)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(fmt.Sprintf("method-%d", i), testInstances)
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestConsistentHashOrderIndependent(t *testing.T) {
	b := NewConsistentHashBalancer()
	reversed := []registry.Instance{testInstances[2], testInstances[1], testInstances[0]}

	a, err := b.Pick("getPlatformVersion", testInstances)
	require.NoError(t, err)
	c, err := NewConsistentHashBalancer().Pick("getPlatformVersion", reversed)
	require.NoError(t, err)
	assert.Equal(t, a.Addr, c.Addr)
}

func TestNew(t *testing.T) {
	b, err := New("consistent_hash")
	require.NoError(t, err)
	assert.Equal(t, "ConsistentHash", b.Name())

	b, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "RoundRobin", b.Name())

	_, err = New("random")
	assert.Error(t, err)
}
