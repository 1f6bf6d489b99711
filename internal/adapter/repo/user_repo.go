package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// GetEntitlement loads the tier and quota counters for a user.
func (r *UserRepositoryPG) GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectEntitlement, userID)
	return scanEntitlement(row)
}

// CreateProfile inserts a free-tier profile with zero quotas, or refreshes
// the email on an existing one.
func (r *UserRepositoryPG) CreateProfile(ctx context.Context, userID, email string) (*domain.Entitlement, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertProfile, userID, strings.TrimSpace(email))
	return scanEntitlement(row)
}

// IncrementUsage bumps the used counter of one feature by exactly one.
func (r *UserRepositoryPG) IncrementUsage(ctx context.Context, userID string, feature domain.Feature) error {
	if feature == domain.FeatureNone {
		return nil
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QIncrementUsage, userID, string(feature))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPlan applies an administrative tier change to the user matched by id
// or email.
func (r *UserRepositoryPG) SetPlan(ctx context.Context, idOrEmail string, update domain.PlanUpdate) (*domain.Entitlement, error) {
	switch update.Tier {
	case domain.TierFree, domain.TierPro:
	default:
		return nil, &domain.ValidationError{Field: "tier", Reason: "unsupported tier " + string(update.Tier)}
	}
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateUserPlan,
		strings.TrimSpace(idOrEmail), string(update.Tier), update.UpscaleQuota, update.ExpandQuota, update.ResetUsage)
	return scanEntitlement(row)
}

func scanEntitlement(row pgx.Row) (*domain.Entitlement, error) {
	var (
		e             domain.Entitlement
		tier          string
		upUsed, upQ   int
		expUsed, expQ int
	)
	if err := row.Scan(&e.UserID, &e.Email, &tier, &upUsed, &upQ, &expUsed, &expQ, &e.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	e.Tier = domain.Tier(tier)
	e.Usage = map[domain.Feature]domain.Usage{
		domain.FeatureUpscale: {Used: upUsed, Quota: upQ},
		domain.FeatureExpand:  {Used: expUsed, Quota: expQ},
	}
	return &e, nil
}
