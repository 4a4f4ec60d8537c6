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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/testforge/testforge/internal/authz"
)

// RegistryRepository implements authz.RegistryWriter and authz.RoleReader
// over the permissions / roles / role_permissions tables.
type RegistryRepository struct {
	pool Querier
}

// NewRegistryRepository creates a new registry repository
func NewRegistryRepository(db *DB) *RegistryRepository {
	return &RegistryRepository{pool: db.pool}
}

// UpsertPermission inserts the permission if absent and returns its id. The
// description is refreshed on every run so catalog edits propagate.
func (r *RegistryRepository) UpsertPermission(ctx context.Context, p authz.Permission, description string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (scope, action, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, action) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`, p.Scope, p.Action, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert permission %s: %w", p, err)
	}
	return id, nil
}

// UpsertRole inserts the role if absent and returns its id.
func (r *RegistryRepository) UpsertRole(ctx context.Context, name, description string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`, name, description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert role %q: %w", name, err)
	}
	return id, nil
}

// EnsureRolePermission links a role to a permission, ignoring duplicates.
func (r *RegistryRepository) EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to link role %d to permission %d: %w", roleID, permissionID, err)
	}
	return nil
}

// RoleIDByName resolves a role by its canonical name
func (r *RegistryRepository) RoleIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM roles WHERE name = $1
	`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, authz.ErrRoleNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up role %q: %w", name, err)
	}
	return id, nil
}

// AnyRoleHasPermission reports whether any of the given roles carries the
// exact (scope, action) pair.
func (r *RegistryRepository) AnyRoleHasPermission(ctx context.Context, roleIDs []int64, p authz.Permission) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM role_permissions rp
			JOIN permissions perm ON perm.id = rp.permission_id
			WHERE rp.role_id = ANY($1) AND perm.scope = $2 AND perm.action = $3
		)
	`, roleIDs, p.Scope, p.Action).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check role permissions: %w", err)
	}
	return exists, nil
}
