package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"aieditor/internal/infra"
	"aieditor/internal/sqlinline"
)

const (
	ProviderReplicate = "replicate"
)

// Store reads and writes provider tokens kept in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) ReplicateAPIToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderReplicate)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetReplicateAPIToken(ctx context.Context, token string, props map[string]any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("replicate api token is required")
	}
	return s.upsert(ctx, ProviderReplicate, token, props)
}

func (s *Store) DeleteToken(ctx context.Context, provider string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	return err
}

// Resolve prefers the environment token and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, envToken string) (string, error) {
	if t := strings.TrimSpace(envToken); t != "" {
		return t, nil
	}
	if s == nil || s.sql == nil {
		return "", nil
	}
	return s.ReplicateAPIToken(ctx)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
