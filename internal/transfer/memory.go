package transfer

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	payload string
	expires time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: normalizeTTL(ttl), now: time.Now, entries: map[string]entry{}}
}

func (s *MemoryStore) Put(ctx context.Context, payload string) (Ticket, error) {
	if strings.TrimSpace(payload) == "" {
		return Ticket{}, ErrEmptyPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictLocked(now)
	token := newToken()
	expires := now.Add(s.ttl)
	s.entries[token] = entry{payload: payload, expires: expires}
	return Ticket{Token: token, ExpiresAt: expires.UTC()}, nil
}

func (s *MemoryStore) Take(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
	token = strings.TrimSpace(token)
	e, ok := s.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, token)
	return e.payload, nil
}

// Len returns the number of unexpired payloads.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
	return len(s.entries)
}

func (s *MemoryStore) evictLocked(now time.Time) {
	for token, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, token)
		}
	}
}
