package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatal(err)
	}
	v, found, err := s.Get(ctx, "k")
	if err != nil || !found || string(v) != "v1" {
		t.Fatalf("expected v1, got %q found=%v err=%v", v, found, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Error("expected key deleted")
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	_ = s.Set(ctx, "bars", []byte("x"), time.Minute)
	now = now.Add(61 * time.Second)
	if _, found, _ := s.Get(ctx, "bars"); found {
		t.Error("expected entry to expire")
	}
	_ = s.Set(ctx, "forever", []byte("y"), 0)
	now = now.Add(24 * time.Hour)
	if _, found, _ := s.Get(ctx, "forever"); !found {
		t.Error("expected entry without ttl to persist")
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf, 0)
	buf[0] = 'z'
	v, _, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Errorf("expected stored copy abc, got %s", v)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), addr, "", 0, "tradesentinel:test:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exercise(t, s)
}
