package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNew_UnreachableAddr(t *testing.T) {
	if _, err := New(context.Background(), "127.0.0.1:1"); err == nil {
		t.Fatal("expected ping failure for an unreachable address")
	}
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for an empty address")
	}
}

func TestGetSetDel(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	key := LatestKey("d_test")

	if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss before any Set", err)
	}

	if err := c.Set(ctx, key, []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}

	if err := c.Del(ctx, key); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss after Del", err)
	}

	if err := c.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestSet_TTLExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := LatestKey("d_ttl")

	if err := c.Set(ctx, key, []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss after TTL expiry", err)
	}
}
