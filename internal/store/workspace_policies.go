package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/KhaineVulpana/loco-core/internal/config"
)

// SavePolicy upserts one workspace's policy as JSON.
func (s *Store) SavePolicy(ctx context.Context, policy *config.WorkspacePolicy) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("store: marshal policy %s: %w", policy.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspace_policies (workspace_id, policy_json) VALUES (?, ?)
		 ON CONFLICT(workspace_id) DO UPDATE SET policy_json = excluded.policy_json, updated_at = CURRENT_TIMESTAMP`,
		policy.ID, string(raw))
	if err != nil {
		return fmt.Errorf("store: save policy %s: %w", policy.ID, err)
	}
	return nil
}

// LoadPolicy returns the saved policy for workspaceID, or ok=false if
// none has been saved.
func (s *Store) LoadPolicy(ctx context.Context, workspaceID string) (*config.WorkspacePolicy, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT policy_json FROM workspace_policies WHERE workspace_id = ?`, workspaceID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load policy %s: %w", workspaceID, err)
	}
	var policy config.WorkspacePolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return nil, false, fmt.Errorf("store: decode policy %s: %w", workspaceID, err)
	}
	return &policy, true, nil
}
