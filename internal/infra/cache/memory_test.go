package cache

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryGetAfterTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(func() time.Time { return now })

	if err := c.Set("k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got, err := c.Get("k")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("ожидали v, получили %q", got)
	}

	now = now.Add(time.Hour)
	if _, err := c.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound после истечения TTL, получили %v", err)
	}
}

func TestMemoryOnceRunsOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(func() time.Time { return now })

	calls := 0
	run := func() error {
		calls++
		return nil
	}
	if err := c.Once("rebuild:2025-06-01", 24*time.Hour, run); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := c.Once("rebuild:2025-06-01", 24*time.Hour, run); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 1 {
		t.Fatalf("ожидали 1 вызов, получили %d", calls)
	}

	now = now.Add(25 * time.Hour)
	if err := c.Once("rebuild:2025-06-01", 24*time.Hour, run); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 2 {
		t.Fatalf("после истечения TTL ожидали повторный вызов, получили %d", calls)
	}
}

func TestMemoryOnceReleasesOnError(t *testing.T) {
	c := NewMemory(nil)

	boom := errors.New("сбой")
	if err := c.Once("k", time.Hour, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ожидали исходную ошибку, получили %v", err)
	}
	calls := 0
	if err := c.Once("k", time.Hour, func() error { calls++; return nil }); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 1 {
		t.Fatalf("после ошибки ключ должен освобождаться")
	}
}
