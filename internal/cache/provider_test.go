package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// exerciseProvider runs the behaviour every persistent backend must share.
func exerciseProvider(t *testing.T, p Provider) {
	t.Helper()
	ctx := context.Background()

	if _, err := p.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	ok, err := p.SetNX(ctx, "user", []byte("demo-user"), 0)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to store, ok=%v err=%v", ok, err)
	}
	ok, err = p.SetNX(ctx, "user", []byte("other"), 0)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to be rejected, ok=%v err=%v", ok, err)
	}

	got, err := p.Get(ctx, "user")
	if err != nil || string(got) != "demo-user" {
		t.Fatalf("expected demo-user, got %q (%v)", got, err)
	}

	if err := p.Set(ctx, "user", []byte("alice"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = p.Get(ctx, "user")
	if err != nil || string(got) != "alice" {
		t.Fatalf("expected alice, got %q (%v)", got, err)
	}

	if err := p.Set(ctx, "empty", []byte(""), 0); err != nil {
		t.Fatalf("set empty: %v", err)
	}
	got, err = p.Get(ctx, "empty")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected stored empty value, got %q (%v)", got, err)
	}

	if err := p.Del(ctx, "user"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := p.Get(ctx, "user"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
	if err := p.Del(ctx, "user"); err != nil {
		t.Fatalf("deleting an absent key must succeed: %v", err)
	}
}

func TestMemoryProvider(t *testing.T) {
	exerciseProvider(t, NewMemoryProvider())
}

func TestMemoryProviderExpiry(t *testing.T) {
	p := NewMemoryProvider()
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
	ok, _ := p.SetNX(ctx, "k", []byte("v2"), 0)
	if !ok {
		t.Fatalf("expected SetNX to replace an expired key")
	}
}

func TestFileProvider(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "nested", "identity.yaml"))
	if err != nil {
		t.Fatalf("new file provider: %v", err)
	}
	exerciseProvider(t, p)
}

func TestFileProviderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	ctx := context.Background()

	first, _ := NewFileProvider(path)
	if err := first.Set(ctx, "risk_user_id", []byte("alice"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	second, _ := NewFileProvider(path)
	got, err := second.Get(ctx, "risk_user_id")
	if err != nil || string(got) != "alice" {
		t.Fatalf("expected alice after reopen, got %q (%v)", got, err)
	}
}

func TestFileProviderRequiresPath(t *testing.T) {
	if _, err := NewFileProvider(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSQLiteProvider(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("new sqlite provider: %v", err)
	}
	defer p.Close()
	exerciseProvider(t, p)
}

func TestSQLiteProviderExpiry(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("new sqlite provider: %v", err)
	}
	defer p.Close()

	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired key to miss, got %v", err)
	}
	ok, err := p.SetNX(ctx, "k", []byte("v2"), 0)
	if err != nil || !ok {
		t.Fatalf("expected SetNX over expired key, ok=%v err=%v", ok, err)
	}
}

func TestValkeyProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := NewValkeyProvider(ValkeyConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new valkey provider: %v", err)
	}
	defer p.Close()
	exerciseProvider(t, p)
}

func TestValkeyProviderTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	p, err := NewValkeyProvider(ValkeyConfig{Addr: mr.Addr(), DB: 2})
	if err != nil {
		t.Fatalf("new valkey provider: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected key to expire, got %v", err)
	}
}

func TestValkeyProviderFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewValkeyProvider(ValkeyConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatalf("expected ping failure against a closed server")
	}
	if _, err := NewValkeyProvider(ValkeyConfig{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNoopProvider(t *testing.T) {
	var p Provider = NoopProvider{}
	ctx := context.Background()
	if err := p.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("noop provider must never return data")
	}
}
