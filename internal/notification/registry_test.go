package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRegistryPriorityOrder(t *testing.T) {
	high := newFakeProvider("high", true)
	low := newFakeProvider("low", true)

	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: low, Priority: 2},
		{Provider: high, Priority: 1},
	}, time.Minute, nil, nil)

	providers := registry.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "high", providers[0].Provider.Name())
	assert.Equal(t, "low", providers[1].Provider.Name())

	active := registry.EnsureActive(context.Background())
	require.NotNil(t, active)
	assert.Equal(t, "high", active.Name())
}

func TestProviderRegistryFallsBackWhenPrimaryUnavailable(t *testing.T) {
	primary := newFakeProvider("primary", false)
	secondary := newFakeProvider("secondary", true)

	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: primary, Priority: 1},
		{Provider: secondary, Priority: 2},
	}, time.Minute, nil, nil)

	active := registry.EnsureActive(context.Background())
	require.NotNil(t, active)
	assert.Equal(t, "secondary", active.Name())

	_, sends := primary.counts()
	assert.Zero(t, sends, "unavailable primary must never receive sends")
}

func TestProviderRegistryCachesSelectionWithinTTL(t *testing.T) {
	provider := newFakeProvider("only", true)
	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: provider, Priority: 1},
	}, time.Minute, nil, nil)

	now := time.Now()
	registry.now = func() time.Time { return now }

	ctx := context.Background()
	require.NotNil(t, registry.EnsureActive(ctx))
	probesAfterFirst, _ := provider.counts()

	// Within the TTL the cached selection is reused without probing
	require.NotNil(t, registry.EnsureActive(ctx))
	probesAfterSecond, _ := provider.counts()
	assert.Equal(t, probesAfterFirst, probesAfterSecond)

	// After the TTL the registry probes again
	now = now.Add(2 * time.Minute)
	require.NotNil(t, registry.EnsureActive(ctx))
	probesAfterThird, _ := provider.counts()
	assert.Equal(t, probesAfterFirst+1, probesAfterThird)
}

func TestProviderRegistryKeepsStaleActiveWhenAllUnavailable(t *testing.T) {
	provider := newFakeProvider("flaky", true)
	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: provider, Priority: 1},
	}, time.Minute, nil, nil)

	ctx := context.Background()
	require.NotNil(t, registry.EnsureActive(ctx))

	provider.setAvailable(false)
	active := registry.ForceRefresh(ctx)
	require.NotNil(t, active, "previous active provider is kept when nothing probes available")
	assert.Equal(t, "flaky", active.Name())
}

func TestProviderRegistryNilWhenNeverAvailable(t *testing.T) {
	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: newFakeProvider("down", false), Priority: 1},
	}, time.Minute, nil, nil)

	assert.Nil(t, registry.EnsureActive(context.Background()))
	assert.False(t, registry.IsAvailable(context.Background()))
}

func TestProviderRegistryGetStatusIsIdempotent(t *testing.T) {
	up := newFakeProvider("up", true)
	down := newFakeProvider("down", false)
	registry := NewProviderRegistry([]RegisteredProvider{
		{Provider: up, Priority: 1},
		{Provider: down, Priority: 2},
	}, time.Minute, nil, nil)

	ctx := context.Background()
	first := registry.GetStatus(ctx)
	second := registry.GetStatus(ctx)

	assert.Equal(t, map[string]bool{"up": true, "down": false}, first)
	assert.Equal(t, first, second)

	// Diagnostics never select an active provider
	registry.mu.Lock()
	assert.Nil(t, registry.active)
	registry.mu.Unlock()
}
