package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorchat-core/server/internal/assistant/model"
)

type fakeStore struct {
	data    map[string]string
	failGet bool
	failSet bool
	touched map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, touched: map[string]time.Duration{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("store down")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.failSet {
		return errors.New("store down")
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Touch(ctx context.Context, key string, ttl time.Duration) error {
	f.touched[key] = ttl
	return nil
}

func testConfig() model.CacheConfig {
	return model.CacheConfig{
		TTL:             "30m",
		MinQueryLength:  10,
		MinConfidence:   0.7,
		ExcludedIntents: "vehicle_search,negotiation,lead_capture,test_drive_scheduling",
	}
}

func TestKeyDerivation(t *testing.T) {
	t.Run("whitespace and case insensitive", func(t *testing.T) {
		a := Key("  What IS the   warranty ", "prompt")
		b := Key("what is the warranty", "prompt")
		assert.Equal(t, a, b)
	})

	t.Run("different system prompts produce different keys", func(t *testing.T) {
		a := Key("what is the warranty", "prompt one")
		b := Key("what is the warranty", "prompt two")
		assert.NotEqual(t, a, b)
	})

	t.Run("namespaced fixed-length key", func(t *testing.T) {
		k := Key("what is the warranty", strings.Repeat("long prompt ", 500))
		assert.True(t, strings.HasPrefix(k, "anscache:"))
		assert.Len(t, k, len("anscache:")+32)
	})
}

func TestShortQueriesNeverCached(t *testing.T) {
	store := newFakeStore()
	c := New(store, testConfig())
	ctx := context.Background()

	stored := c.Put(ctx, "hi", "hello there", "greeting", 0.99, false, "prompt", 0)
	assert.False(t, stored)
	assert.Empty(t, store.data)

	_, hit := c.TryGet(ctx, "hi", "prompt")
	assert.False(t, hit)
}

func TestWritePolicy(t *testing.T) {
	tests := []struct {
		name       string
		intent     string
		confidence float64
		isFallback bool
		want       bool
	}{
		{name: "confident non-fallback is stored", intent: "warranty_info", confidence: 0.9, want: true},
		{name: "fallback is never stored", intent: "warranty_info", confidence: 0.9, isFallback: true, want: false},
		{name: "low confidence is never stored", intent: "warranty_info", confidence: 0.69, want: false},
		{name: "boundary confidence is stored", intent: "warranty_info", confidence: 0.7, want: true},
		{name: "dynamic intent is never stored", intent: "vehicle_search", confidence: 0.95, want: false},
		{name: "lead capture is never stored", intent: "lead_capture", confidence: 1.0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			c := New(store, testConfig())

			stored := c.Put(context.Background(), "what is the warranty period", "two years",
				tt.intent, tt.confidence, tt.isFallback, "prompt", 0)

			assert.Equal(t, tt.want, stored)
			assert.Equal(t, tt.want, len(store.data) == 1)
		})
	}
}

func TestRoundTripAndSlidingExpiration(t *testing.T) {
	store := newFakeStore()
	c := New(store, testConfig())
	ctx := context.Background()

	require.True(t, c.Put(ctx, "what is the warranty period", "two years", "warranty_info", 0.9, false, "prompt", 0))

	entry, hit := c.TryGet(ctx, "  WHAT is   the warranty period ", "prompt")
	require.True(t, hit)
	assert.Equal(t, "two years", entry.Response)
	assert.Equal(t, "warranty_info", entry.Intent)
	assert.InDelta(t, 0.9, entry.Confidence, 1e-9)

	// A hit extends the TTL.
	assert.Equal(t, 30*time.Minute, store.touched[entry.Key])
}

func TestStoreFailuresDegrade(t *testing.T) {
	t.Run("read failure is a miss", func(t *testing.T) {
		store := newFakeStore()
		store.failGet = true
		c := New(store, testConfig())

		_, hit := c.TryGet(context.Background(), "what is the warranty period", "prompt")
		assert.False(t, hit)
	})

	t.Run("write failure is a no-op", func(t *testing.T) {
		store := newFakeStore()
		store.failSet = true
		c := New(store, testConfig())

		stored := c.Put(context.Background(), "what is the warranty period", "two years", "warranty_info", 0.9, false, "prompt", 0)
		assert.False(t, stored)
	})

	t.Run("corrupt entry is a miss", func(t *testing.T) {
		store := newFakeStore()
		c := New(store, testConfig())
		store.data[Key("what is the warranty period", "prompt")] = "{not json"

		_, hit := c.TryGet(context.Background(), "what is the warranty period", "prompt")
		assert.False(t, hit)
	})
}
