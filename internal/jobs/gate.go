package jobs

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
)

// Entitlements is the identity/quota collaborator.
type Entitlements interface {
	GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
	IncrementUsage(ctx context.Context, userID string, feature domain.Feature) error
}

// Gate decides whether a caller may submit an operation.
type Gate struct {
	entitlements Entitlements
	metrics      *Metrics
	logger       *infra.Logger
}

// NewGate constructs a Gate. metrics and logger may be nil.
func NewGate(entitlements Entitlements, metrics *Metrics, logger *infra.Logger) *Gate {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Gate{entitlements: entitlements, metrics: metrics, logger: logger}
}

// Authorize admits only signed-in pro users with quota left for the kind's
// feature. Denials are returned as *domain.DenialError. A user without a
// profile is treated as free tier.
func (g *Gate) Authorize(ctx context.Context, userID string, kind domain.OperationKind) (*Grant, error) {
	feature := domain.FeatureFor(kind)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, g.deny(domain.DenialNotSignedIn, feature)
	}
	ent, err := g.entitlements.GetEntitlement(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, g.deny(domain.DenialSubscriptionRequired, feature)
		}
		return nil, err
	}
	if ent.Tier != domain.TierPro {
		return nil, g.deny(domain.DenialSubscriptionRequired, feature)
	}
	if !ent.Within(feature) {
		return nil, g.deny(domain.DenialQuotaExhausted, feature)
	}
	return &Grant{gate: g, userID: userID, feature: feature}, nil
}

func (g *Gate) deny(reason domain.DenialReason, feature domain.Feature) error {
	g.metrics.denied(reason)
	return &domain.DenialError{Reason: reason, Feature: feature}
}

// Grant is an approved request. Confirm charges quota at most once.
type Grant struct {
	gate    *Gate
	userID  string
	feature domain.Feature
	once    sync.Once
}

// Feature returns the quota counter this grant charges.
func (g *Grant) Feature() domain.Feature {
	return g.feature
}

// Confirm records one successful operation. Only call it when the job has
// succeeded. Increment failures are logged and never returned.
func (g *Grant) Confirm(ctx context.Context) {
	if g == nil || g.feature == domain.FeatureNone {
		return
	}
	g.once.Do(func() {
		if err := g.gate.entitlements.IncrementUsage(ctx, g.userID, g.feature); err != nil {
			g.gate.metrics.incrementFailed(g.feature)
			g.gate.logger.Error().Err(err).
				Str("user_id", g.userID).
				Str("feature", string(g.feature)).
				Msg("jobs: quota increment failed")
		}
	})
}
