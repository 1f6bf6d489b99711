package jobs

import (
	"context"
	"errors"
	"testing"

	"aieditor/internal/domain"
)

func TestGateAuthorize(t *testing.T) {
	ents := &fakeEntitlements{byUser: map[string]*domain.Entitlement{
		"free":      freeUser("free"),
		"pro":       proUser("pro", 1, 5),
		"exhausted": proUser("exhausted", 5, 5),
	}}
	tests := []struct {
		name   string
		userID string
		kind   domain.OperationKind
		reason domain.DenialReason
	}{
		{name: "anonymous", userID: "", kind: domain.OperationUpscale, reason: domain.DenialNotSignedIn},
		{name: "free tier expand", userID: "free", kind: domain.OperationExpand, reason: domain.DenialSubscriptionRequired},
		{name: "free tier fill", userID: "free", kind: domain.OperationFill, reason: domain.DenialSubscriptionRequired},
		{name: "missing profile", userID: "ghost", kind: domain.OperationUpscale, reason: domain.DenialSubscriptionRequired},
		{name: "pro exhausted", userID: "exhausted", kind: domain.OperationUpscale, reason: domain.DenialQuotaExhausted},
		{name: "pro exhausted fill has no counter", userID: "exhausted", kind: domain.OperationFill},
		{name: "pro within quota", userID: "pro", kind: domain.OperationExpand},
	}
	gate := NewGate(ents, NewMetrics(nil), nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			grant, err := gate.Authorize(context.Background(), tc.userID, tc.kind)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("unexpected denial: %v", err)
				}
				if grant == nil {
					t.Fatalf("expected grant")
				}
				return
			}
			var denial *domain.DenialError
			if !errors.As(err, &denial) {
				t.Fatalf("expected DenialError, got %v", err)
			}
			if denial.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", denial.Reason, tc.reason)
			}
		})
	}
}

func TestGateLookupFailureIsNotADenial(t *testing.T) {
	boom := errors.New("db down")
	gate := NewGate(&fakeEntitlements{getErr: boom}, nil, nil)
	_, err := gate.Authorize(context.Background(), "u", domain.OperationUpscale)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want db error", err)
	}
	var denial *domain.DenialError
	if errors.As(err, &denial) {
		t.Fatalf("lookup failure must not be reported as a denial")
	}
}

func TestGrantConfirmIncrementsOnce(t *testing.T) {
	ents := &fakeEntitlements{byUser: map[string]*domain.Entitlement{"pro": proUser("pro", 0, 3)}}
	grant, err := NewGate(ents, nil, nil).Authorize(context.Background(), "pro", domain.OperationUpscale)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	grant.Confirm(context.Background())
	grant.Confirm(context.Background())
	if got := ents.incrementCount(); got != 1 {
		t.Fatalf("increments = %d, want 1", got)
	}
	if ents.increments[0] != domain.FeatureUpscale {
		t.Fatalf("feature = %s", ents.increments[0])
	}
}

func TestGrantConfirmSwallowsIncrementFailure(t *testing.T) {
	ents := &fakeEntitlements{
		byUser: map[string]*domain.Entitlement{"pro": proUser("pro", 0, 3)},
		incErr: errors.New("timeout"),
	}
	grant, err := NewGate(ents, NewMetrics(nil), nil).Authorize(context.Background(), "pro", domain.OperationExpand)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	grant.Confirm(context.Background())
	if got := ents.incrementCount(); got != 1 {
		t.Fatalf("increments = %d, want 1", got)
	}
}

func TestGrantConfirmFillNeverIncrements(t *testing.T) {
	ents := &fakeEntitlements{byUser: map[string]*domain.Entitlement{"pro": proUser("pro", 0, 3)}}
	grant, err := NewGate(ents, nil, nil).Authorize(context.Background(), "pro", domain.OperationFill)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	grant.Confirm(context.Background())
	if got := ents.incrementCount(); got != 0 {
		t.Fatalf("increments = %d, want 0", got)
	}
}
