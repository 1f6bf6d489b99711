package domain

import (
	"context"
	"time"
)

// UserRepository persists subscription tiers and quota counters.
type UserRepository interface {
	GetEntitlement(ctx context.Context, userID string) (*Entitlement, error)
	CreateProfile(ctx context.Context, userID, email string) (*Entitlement, error)
	IncrementUsage(ctx context.Context, userID string, feature Feature) error
}

// JobRepository persists job snapshots.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	GetForUser(ctx context.Context, jobID, userID string) (*Job, error)
	ListUncheckedTimedOut(ctx context.Context, limit int) ([]Job, error)
	SetLateStatus(ctx context.Context, jobID, status string) error
	ExpireStale(ctx context.Context, staleAfter time.Duration, detail string) (int64, error)
}

// ImageRepository stores the per-user image history.
type ImageRepository interface {
	Save(ctx context.Context, img *UserImage) error
	ListByUser(ctx context.Context, userID string) ([]UserImage, error)
}
