// Package transfer hands an image from one page of the editor to another
// through a short-lived, consume-once token.
package transfer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an unclaimed payload is kept.
const DefaultTTL = 15 * time.Minute

// ErrNotFound is returned for unknown, expired or already consumed tokens.
var ErrNotFound = errors.New("transfer: token not found")

// ErrEmptyPayload is returned when there is nothing to hand off.
var ErrEmptyPayload = errors.New("transfer: payload is empty")

// Ticket identifies a stored payload.
type Ticket struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps payloads until they are claimed once or expire.
type Store interface {
	Put(ctx context.Context, payload string) (Ticket, error)
	Take(ctx context.Context, token string) (string, error)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
