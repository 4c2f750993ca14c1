package cache

import (
	"context"
	"testing"
	"time"
)

func TestGenerateKey(t *testing.T) {
	t.Run("question normalization", func(t *testing.T) {
		a := GenerateKey("  What is RAG?  ", nil, nil)
		b := GenerateKey("what is rag?", nil, nil)
		if a != b {
			t.Errorf("Expected normalized questions to share a key, got %s vs %s", a, b)
		}
	})

	t.Run("context files change the key", func(t *testing.T) {
		a := GenerateKey("q", []string{"a.txt"}, nil)
		b := GenerateKey("q", []string{"b.txt"}, nil)
		if a == b {
			t.Error("Expected different context files to produce different keys")
		}
	})

	t.Run("settings change the key", func(t *testing.T) {
		a := GenerateKey("q", nil, map[string]any{"temperature": 0.7})
		b := GenerateKey("q", nil, map[string]any{"temperature": 0.2})
		if a == b {
			t.Error("Expected different settings to produce different keys")
		}
	})

	t.Run("deterministic across map ordering", func(t *testing.T) {
		s1 := map[string]any{"a": 1, "b": 2, "c": 3}
		s2 := map[string]any{"c": 3, "b": 2, "a": 1}
		if GenerateKey("q", nil, s1) != GenerateKey("q", nil, s2) {
			t.Error("Expected settings maps with equal contents to share a key")
		}
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		m := NewMemory(10, time.Minute)
		defer m.Close()

		if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		value, found, err := m.Get(ctx, "k")
		if err != nil || !found {
			t.Fatalf("Expected hit, got found=%v err=%v", found, err)
		}
		if string(value) != "v" {
			t.Errorf("Expected v, got %s", value)
		}
	})

	t.Run("expiry", func(t *testing.T) {
		m := NewMemory(10, 10*time.Millisecond)
		defer m.Close()

		m.Set(ctx, "k", []byte("v"), 0)
		time.Sleep(20 * time.Millisecond)
		if _, found, _ := m.Get(ctx, "k"); found {
			t.Error("Expected expired entry to miss")
		}
	})

	t.Run("per-entry ttl overrides the default", func(t *testing.T) {
		m := NewMemory(10, time.Minute)
		defer m.Close()

		m.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
		m.Set(ctx, "long", []byte("v"), 0)
		time.Sleep(20 * time.Millisecond)

		if _, found, _ := m.Get(ctx, "short"); found {
			t.Error("Expected short-lived entry to expire")
		}
		if _, found, _ := m.Get(ctx, "long"); !found {
			t.Error("Expected default-ttl entry to survive")
		}
	})

	t.Run("lru eviction", func(t *testing.T) {
		m := NewMemory(2, time.Minute)
		defer m.Close()

		m.Set(ctx, "a", []byte("1"), 0)
		time.Sleep(2 * time.Millisecond)
		m.Set(ctx, "b", []byte("2"), 0)
		time.Sleep(2 * time.Millisecond)
		m.Get(ctx, "a") // refresh a, making b the LRU victim
		time.Sleep(2 * time.Millisecond)
		m.Set(ctx, "c", []byte("3"), 0)

		if _, found, _ := m.Get(ctx, "b"); found {
			t.Error("Expected b to be evicted")
		}
		if _, found, _ := m.Get(ctx, "a"); !found {
			t.Error("Expected a to survive")
		}
		if _, found, _ := m.Get(ctx, "c"); !found {
			t.Error("Expected c to be present")
		}
	})

	t.Run("stats", func(t *testing.T) {
		m := NewMemory(10, time.Minute)
		defer m.Close()

		m.Set(ctx, "k", []byte("v"), 0)
		m.Get(ctx, "k")
		m.Get(ctx, "missing")

		stats, err := m.Stats(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if stats.Hits != 1 || stats.Misses != 1 {
			t.Errorf("Expected 1 hit and 1 miss, got %d/%d", stats.Hits, stats.Misses)
		}
		if stats.HitRate != 0.5 {
			t.Errorf("Expected hit rate 0.5, got %v", stats.HitRate)
		}
		if stats.TotalRequests != 2 {
			t.Errorf("Expected 2 total requests, got %d", stats.TotalRequests)
		}
	})

	t.Run("clear", func(t *testing.T) {
		m := NewMemory(10, time.Minute)
		defer m.Close()

		m.Set(ctx, "k", []byte("v"), 0)
		m.Clear(ctx)
		if _, found, _ := m.Get(ctx, "k"); found {
			t.Error("Expected cleared cache to miss")
		}
	})
}
