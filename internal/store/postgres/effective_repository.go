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

	squirrel "github.com/Masterminds/squirrel"
)

// EffectiveRepository implements authz.EffectiveReader. The aggregate joins
// are assembled with squirrel because each branch shares the same
// grant -> role_permissions -> permissions spine with a different root table.
type EffectiveRepository struct {
	pool    Querier
	builder squirrel.StatementBuilderType
}

// NewEffectiveRepository creates a new effective-permissions repository
func NewEffectiveRepository(db *DB) *EffectiveRepository {
	return &EffectiveRepository{
		pool:    db.pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// SystemPermissions returns the distinct permission strings granted through
// any tenant-level role, across all tenants.
func (r *EffectiveRepository) SystemPermissions(ctx context.Context, userID int64) ([]string, error) {
	stmt, args, err := r.builder.
		Select("DISTINCT p.scope || ':' || p.action AS permission").
		From("user_tenant_roles utr").
		Join("role_permissions rp ON rp.role_id = utr.role_id").
		Join("permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"utr.user_id": userID}).
		OrderBy("permission").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build system permissions sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get system permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// WorkspacePermissions returns permission strings granted per workspace
func (r *EffectiveRepository) WorkspacePermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	stmt, args, err := r.builder.
		Select("uwr.workspace_id", "p.scope || ':' || p.action AS permission").
		Distinct().
		From("user_workspace_roles uwr").
		Join("role_permissions rp ON rp.role_id = uwr.role_id").
		Join("permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"uwr.user_id": userID}).
		OrderBy("uwr.workspace_id", "permission").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build workspace permissions sql: %w", err)
	}
	return r.scopedPermissions(ctx, stmt, args)
}

// ProjectPermissions returns permission strings granted per project, through
// both direct and team grants.
func (r *EffectiveRepository) ProjectPermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	directSQL, directArgs, err := squirrel.
		Select("upr.project_id", "p.scope || ':' || p.action AS permission").
		From("user_project_roles upr").
		Join("role_permissions rp ON rp.role_id = upr.role_id").
		Join("permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"upr.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project permissions sql: %w", err)
	}

	teamSQL, teamArgs, err := squirrel.
		Select("tpr.project_id", "p.scope || ':' || p.action AS permission").
		From("team_project_roles tpr").
		Join("team_members tm ON tm.team_id = tpr.team_id").
		Join("role_permissions rp ON rp.role_id = tpr.role_id").
		Join("permissions p ON p.id = rp.permission_id").
		Where(squirrel.Eq{"tm.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build team project permissions sql: %w", err)
	}

	// UNION dedupes direct and team-derived rows for the same project. Both
	// branches are built with ? placeholders and renumbered together.
	stmt, err := squirrel.Dollar.ReplacePlaceholders(
		directSQL + " UNION " + teamSQL + " ORDER BY project_id, permission",
	)
	if err != nil {
		return nil, fmt.Errorf("build project permissions union sql: %w", err)
	}
	return r.scopedPermissions(ctx, stmt, append(directArgs, teamArgs...))
}

func (r *EffectiveRepository) scopedPermissions(ctx context.Context, stmt string, args []any) (map[int64][]string, error) {
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get scoped permissions: %w", err)
	}
	defer rows.Close()

	perms := make(map[int64][]string)
	for rows.Next() {
		var scopeID int64
		var p string
		if err := rows.Scan(&scopeID, &p); err != nil {
			return nil, fmt.Errorf("failed to scan scoped permission: %w", err)
		}
		perms[scopeID] = append(perms[scopeID], p)
	}
	return perms, rows.Err()
}
