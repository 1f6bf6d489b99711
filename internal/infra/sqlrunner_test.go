package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid marker",
			query:  "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;",
			marker: "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7",
			body:   "select 1;",
		},
		{
			name:   "leading whitespace tolerated",
			query:  "\n  --sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 2;\n",
			marker: "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7",
			body:   "select 2;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 8A8E0D52-7F5D-4F21-8B7D-F7D4B821EED7\nselect 1;",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if body != tc.body {
				t.Fatalf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestQueryRowRejectsUnmarkedSQL(t *testing.T) {
	runner := NewSQLRunner(nil, zerolog.Nop())
	err := runner.QueryRow(context.Background(), "select 1").Scan()
	if err == nil {
		t.Fatalf("expected marker error")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatalf("pgx.ErrNoRows should be detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unrelated error should not match")
	}
}
