package domain

import "time"

// Tier enumerates subscription tiers.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Feature names a quota counter tracked by the identity service.
type Feature string

const (
	FeatureNone    Feature = ""
	FeatureUpscale Feature = "upscale"
	FeatureExpand  Feature = "expand"
)

// FeatureFor returns the quota counter charged for an operation. Fill has none.
func FeatureFor(kind OperationKind) Feature {
	switch kind {
	case OperationUpscale:
		return FeatureUpscale
	case OperationExpand:
		return FeatureExpand
	default:
		return FeatureNone
	}
}

// Usage is one feature's counter pair.
type Usage struct {
	Used  int `json:"used"`
	Quota int `json:"quota"`
}

// Remaining reports how many operations are left.
func (u Usage) Remaining() int {
	if u.Used >= u.Quota {
		return 0
	}
	return u.Quota - u.Used
}

// Entitlement is the subscription and quota snapshot for one user.
type Entitlement struct {
	UserID  string            `json:"user_id"`
	Email   string            `json:"email"`
	Tier    Tier              `json:"subscription_tier"`
	Usage   map[Feature]Usage `json:"usage"`
	Created time.Time         `json:"created_at"`
}

// Within reports whether the feature still has quota left.
func (e Entitlement) Within(f Feature) bool {
	if f == FeatureNone {
		return true
	}
	u, ok := e.Usage[f]
	return ok && u.Remaining() > 0
}

// PlanUpdate changes a user's tier. Nil quotas keep the current value.
type PlanUpdate struct {
	Tier         Tier
	UpscaleQuota *int
	ExpandQuota  *int
	ResetUsage   bool
}

// ImageOperation names the history record types.
type ImageOperation string

const (
	ImageOpBackgroundRemoval ImageOperation = "background_removal"
	ImageOpUpscale           ImageOperation = "upscale"
	ImageOpExpand            ImageOperation = "expand"
	ImageOpFill              ImageOperation = "fill"
)

// UserImage is a history row for a processed image.
type UserImage struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	OriginalURL  string         `json:"original_url"`
	ProcessedURL string         `json:"processed_url,omitempty"`
	Operation    ImageOperation `json:"operation_type"`
	FileName     string         `json:"file_name"`
	FileSize     int64          `json:"file_size"`
	CreatedAt    time.Time      `json:"created_at"`
}
