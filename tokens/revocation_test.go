package tokens

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRevocation(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Revoke(ctx, "a", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := m.Revoke(ctx, "expired", now.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if ok, _ := m.IsRevoked(ctx, "a"); !ok {
		t.Fatalf("expected a to be revoked")
	}
	if ok, _ := m.IsRevoked(ctx, "expired"); ok {
		t.Fatalf("already expired tokens need no entry")
	}
	if ok, _ := m.IsRevoked(ctx, "b"); ok {
		t.Fatalf("b was never revoked")
	}

	now = now.Add(2 * time.Hour)
	if ok, _ := m.IsRevoked(ctx, "a"); ok {
		t.Fatalf("entry should lapse with the token")
	}
	m.Revoke(ctx, "c", now.Add(time.Hour))
	if _, ok := m.revoked["a"]; ok {
		t.Fatalf("expected lapsed entry to be pruned")
	}
}

func TestMemoryRevokeOnce(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := m.RevokeOnce(ctx, "a", now.Add(time.Hour))
	if err != nil || !first {
		t.Fatalf("first revoke should win, got %v %v", first, err)
	}
	if again, _ := m.RevokeOnce(ctx, "a", now.Add(time.Hour)); again {
		t.Fatalf("second revoke of the same jti should lose")
	}
	if ok, _ := m.RevokeOnce(ctx, "stale", now.Add(-time.Second)); ok {
		t.Fatalf("expired tokens cannot be rotated")
	}

	m.Revoke(ctx, "b", now.Add(time.Hour))
	if ok, _ := m.RevokeOnce(ctx, "b", now.Add(time.Hour)); ok {
		t.Fatalf("a revoked jti should not be revocable again")
	}

	now = now.Add(2 * time.Hour)
	if ok, _ := m.RevokeOnce(ctx, "a", now.Add(time.Hour)); !ok {
		t.Fatalf("lapsed entries should not block a fresh revoke")
	}
}
