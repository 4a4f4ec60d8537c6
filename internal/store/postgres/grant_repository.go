// Copyright 2026 The TestForge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"

	"github.com/testforge/testforge/internal/authz"
)

// GrantRepository implements authz.GrantReader, authz.GrantWriter and
// authz.BackfillStore over the four grant relations and team membership.
type GrantRepository struct {
	pool Querier
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{pool: db.pool}
}

// --- Decision-path reads ---

// TenantGrants returns every tenant-level grant the user holds
func (r *GrantRepository) TenantGrants(ctx context.Context, userID int64) ([]authz.TenantGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, tenant_id
		FROM user_tenant_roles
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant grants: %w", err)
	}
	defer rows.Close()

	var grants []authz.TenantGrant
	for rows.Next() {
		var g authz.TenantGrant
		if err := rows.Scan(&g.RoleID, &g.TenantID); err != nil {
			return nil, fmt.Errorf("failed to scan tenant grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// WorkspaceRoleIDs returns role ids granted to the user directly on the
// workspace. Rows that only carry a legacy label have a NULL role_id and are
// excluded here.
func (r *GrantRepository) WorkspaceRoleIDs(ctx context.Context, userID, workspaceID int64) ([]int64, error) {
	return r.roleIDs(ctx, `
		SELECT role_id
		FROM user_workspace_roles
		WHERE user_id = $1 AND workspace_id = $2 AND role_id IS NOT NULL
	`, userID, workspaceID)
}

// ProjectRoleIDs returns role ids granted to the user directly on the project
func (r *GrantRepository) ProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	return r.roleIDs(ctx, `
		SELECT role_id
		FROM user_project_roles
		WHERE user_id = $1 AND project_id = $2 AND role_id IS NOT NULL
	`, userID, projectID)
}

// TeamProjectRoleIDs returns role ids granted on the project to any team the
// user belongs to.
func (r *GrantRepository) TeamProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	return r.roleIDs(ctx, `
		SELECT tpr.role_id
		FROM team_project_roles tpr
		JOIN team_members tm ON tm.team_id = tpr.team_id
		WHERE tm.user_id = $1 AND tpr.project_id = $2 AND tpr.role_id IS NOT NULL
	`, userID, projectID)
}

func (r *GrantRepository) roleIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get role ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Writes ---

// AssignTenantRole grants a tenant-level role. Re-granting is a no-op.
func (r *GrantRepository) AssignTenantRole(ctx context.Context, userID, roleID, tenantID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_tenant_roles (user_id, role_id, tenant_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, userID, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to assign tenant role: %w", err)
	}
	return nil
}

// RevokeTenantRole removes a tenant-level role grant
func (r *GrantRepository) RevokeTenantRole(ctx context.Context, userID, roleID, tenantID int64) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM user_tenant_roles
		WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3
	`, userID, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to revoke tenant role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// AssignWorkspaceRole grants a workspace role, replacing any existing role
// the user holds on that workspace.
func (r *GrantRepository) AssignWorkspaceRole(ctx context.Context, userID, workspaceID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_workspace_roles (user_id, workspace_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, workspace_id) DO UPDATE SET role_id = EXCLUDED.role_id, legacy_label = NULL
	`, userID, workspaceID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign workspace role: %w", err)
	}
	return nil
}

// RevokeWorkspaceRole removes the user's workspace grant
func (r *GrantRepository) RevokeWorkspaceRole(ctx context.Context, userID, workspaceID int64) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM user_workspace_roles
		WHERE user_id = $1 AND workspace_id = $2
	`, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to revoke workspace role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// AssignProjectRole grants a project role, replacing any existing role the
// user holds on that project.
func (r *GrantRepository) AssignProjectRole(ctx context.Context, userID, projectID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_project_roles (user_id, project_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, project_id) DO UPDATE SET role_id = EXCLUDED.role_id, legacy_label = NULL
	`, userID, projectID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign project role: %w", err)
	}
	return nil
}

// RevokeProjectRole removes the user's direct project grant
func (r *GrantRepository) RevokeProjectRole(ctx context.Context, userID, projectID int64) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM user_project_roles
		WHERE user_id = $1 AND project_id = $2
	`, userID, projectID)
	if err != nil {
		return fmt.Errorf("failed to revoke project role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// AssignTeamProjectRole grants a project role to a whole team
func (r *GrantRepository) AssignTeamProjectRole(ctx context.Context, teamID, projectID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_project_roles (team_id, project_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, project_id) DO UPDATE SET role_id = EXCLUDED.role_id, legacy_label = NULL
	`, teamID, projectID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign team project role: %w", err)
	}
	return nil
}

// RevokeTeamProjectRole removes a team's project grant
func (r *GrantRepository) RevokeTeamProjectRole(ctx context.Context, teamID, projectID int64) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM team_project_roles
		WHERE team_id = $1 AND project_id = $2
	`, teamID, projectID)
	if err != nil {
		return fmt.Errorf("failed to revoke team project role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// AddTeamMember adds a user to a team. Re-adding is a no-op.
func (r *GrantRepository) AddTeamMember(ctx context.Context, userID, teamID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_members (user_id, team_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, teamID)
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// RemoveTeamMember removes a user from a team
func (r *GrantRepository) RemoveTeamMember(ctx context.Context, userID, teamID int64) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM team_members
		WHERE user_id = $1 AND team_id = $2
	`, userID, teamID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// --- Legacy backfill surface ---

// LegacyWorkspaceGrants returns workspace grants still carrying only a label
func (r *GrantRepository) LegacyWorkspaceGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return r.legacyGrants(ctx, `
		SELECT user_id, workspace_id, legacy_label
		FROM user_workspace_roles
		WHERE role_id IS NULL AND legacy_label IS NOT NULL
	`)
}

// SetWorkspaceGrantRole resolves one legacy workspace grant to a role id
func (r *GrantRepository) SetWorkspaceGrantRole(ctx context.Context, userID, workspaceID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_workspace_roles
		SET role_id = $3
		WHERE user_id = $1 AND workspace_id = $2 AND role_id IS NULL
	`, userID, workspaceID, roleID)
	if err != nil {
		return fmt.Errorf("failed to backfill workspace grant: %w", err)
	}
	return nil
}

// LegacyProjectGrants returns project grants still carrying only a label
func (r *GrantRepository) LegacyProjectGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return r.legacyGrants(ctx, `
		SELECT user_id, project_id, legacy_label
		FROM user_project_roles
		WHERE role_id IS NULL AND legacy_label IS NOT NULL
	`)
}

// SetProjectGrantRole resolves one legacy project grant to a role id
func (r *GrantRepository) SetProjectGrantRole(ctx context.Context, userID, projectID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_project_roles
		SET role_id = $3
		WHERE user_id = $1 AND project_id = $2 AND role_id IS NULL
	`, userID, projectID, roleID)
	if err != nil {
		return fmt.Errorf("failed to backfill project grant: %w", err)
	}
	return nil
}

// LegacyTeamProjectGrants returns team project grants still carrying only a label
func (r *GrantRepository) LegacyTeamProjectGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return r.legacyGrants(ctx, `
		SELECT team_id, project_id, legacy_label
		FROM team_project_roles
		WHERE role_id IS NULL AND legacy_label IS NOT NULL
	`)
}

// SetTeamProjectGrantRole resolves one legacy team project grant to a role id
func (r *GrantRepository) SetTeamProjectGrantRole(ctx context.Context, teamID, projectID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE team_project_roles
		SET role_id = $3
		WHERE team_id = $1 AND project_id = $2 AND role_id IS NULL
	`, teamID, projectID, roleID)
	if err != nil {
		return fmt.Errorf("failed to backfill team project grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) legacyGrants(ctx context.Context, query string) ([]authz.LegacyGrant, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get legacy grants: %w", err)
	}
	defer rows.Close()

	var grants []authz.LegacyGrant
	for rows.Next() {
		var g authz.LegacyGrant
		if err := rows.Scan(&g.SubjectID, &g.ScopeID, &g.Label); err != nil {
			return nil, fmt.Errorf("failed to scan legacy grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
