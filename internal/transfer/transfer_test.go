package transfer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreConsumesOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ticket, err := store.Put(context.Background(), "data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if len(ticket.Token) != 32 {
		t.Fatalf("token = %q", ticket.Token)
	}
	got, err := store.Take(context.Background(), ticket.Token)
	if err != nil {
		t.Fatalf("Take error: %v", err)
	}
	if got != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("payload = %q", got)
	}
	if _, err := store.Take(context.Background(), ticket.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Take err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(10 * time.Minute)
	store.now = func() time.Time { return now }

	ticket, err := store.Put(context.Background(), "payload")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if !ticket.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expires_at = %v", ticket.ExpiresAt)
	}

	now = now.Add(10 * time.Minute)
	if store.Len() != 0 {
		t.Fatalf("expired payload should be evicted")
	}
	if _, err := store.Take(context.Background(), ticket.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRejectsEmptyPayload(t *testing.T) {
	if _, err := NewMemoryStore(0).Put(context.Background(), "  "); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestNormalizeTTL(t *testing.T) {
	if got := normalizeTTL(0); got != DefaultTTL {
		t.Fatalf("normalizeTTL(0) = %v", got)
	}
	if got := normalizeTTL(time.Second); got != time.Second {
		t.Fatalf("normalizeTTL(1s) = %v", got)
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
