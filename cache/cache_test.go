package cache

import (
	"fmt"
	"testing"
)

func TestGetLoadsOnMiss(t *testing.T) {
	loads := 0
	c, err := New[string](4, func(key string) (string, error) {
		loads++
		return "value-" + key, nil
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	v, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "value-a" {
		t.Errorf("expected value-a, got %q", v)
	}
	if loads != 1 {
		t.Errorf("expected 1 load, got %d", loads)
	}

	// second get is a hit
	if _, err := c.Get("a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loads != 1 {
		t.Errorf("expected hit to skip the loader, got %d loads", loads)
	}
}

func TestGetLoadErrorNotCached(t *testing.T) {
	loads := 0
	c, err := New[string](4, func(key string) (string, error) {
		loads++
		return "", fmt.Errorf("no such key %s", key)
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.Get("a"); err == nil {
		t.Fatal("expected load error")
	}
	if _, err := c.Get("a"); err == nil {
		t.Fatal("expected load error on retry")
	}
	if loads != 2 {
		t.Errorf("expected failed loads not to be cached, got %d loads", loads)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCapacityEviction(t *testing.T) {
	var evicted []string
	c, err := New[int](1, func(key string) (int, error) {
		return len(key), nil
	}, func(key string, value int) {
		evicted = append(evicted, key)
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.Get("a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get("bb"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("expected eviction of a, got %v", evicted)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 resident entry, got %d", c.Len())
	}
}

func TestInvalidateRunsEvictionHook(t *testing.T) {
	var evicted []string
	c, err := New[int](4, func(key string) (int, error) {
		return 0, nil
	}, func(key string, value int) {
		evicted = append(evicted, key)
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.Get("a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.Invalidate("a")
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("expected invalidation to run the hook, got %v", evicted)
	}

	// invalidating a non-resident key is a no-op
	c.Invalidate("missing")
	if len(evicted) != 1 {
		t.Errorf("expected no hook for absent key, got %v", evicted)
	}
}

func TestPutBypassesLoader(t *testing.T) {
	loads := 0
	c, err := New[int](4, func(key string) (int, error) {
		loads++
		return -1, nil
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.Put("a", 42)
	v, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if loads != 0 {
		t.Errorf("expected Put to bypass the loader, got %d loads", loads)
	}
}

func TestPurgeEvictsEverything(t *testing.T) {
	var evicted []string
	c, err := New[int](4, func(key string) (int, error) {
		return 0, nil
	}, func(key string, value int) {
		evicted = append(evicted, key)
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.Put("a", 1)
	c.Put("b", 2)
	c.Purge()

	if len(evicted) != 2 {
		t.Errorf("expected 2 evictions, got %v", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestNilLoaderRejected(t *testing.T) {
	if _, err := New[int](4, nil, nil); err == nil {
		t.Fatal("expected error for nil loader")
	}
}
