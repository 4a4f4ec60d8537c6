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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/directory"
)

// DirectoryRepository implements directory.Repository and
// authz.TenantOwnerLister over the identity-graph tables.
type DirectoryRepository struct {
	pool Querier
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{pool: db.pool}
}

// CreateTenant creates a new tenant
func (r *DirectoryRepository) CreateTenant(ctx context.Context, t *directory.Tenant) error {
	t.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, owner_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, t.Name, t.OwnerID, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

// GetTenant retrieves a tenant by ID
func (r *DirectoryRepository) GetTenant(ctx context.Context, id int64) (*directory.Tenant, error) {
	var t directory.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// ListTenants retrieves tenants with pagination
func (r *DirectoryRepository) ListTenants(ctx context.Context, limit, offset int) ([]*directory.Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, owner_id, created_at
		FROM tenants
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*directory.Tenant
	for rows.Next() {
		var t directory.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

// ListTenantOwners returns every tenant's id paired with its owning user
func (r *DirectoryRepository) ListTenantOwners(ctx context.Context) ([]authz.TenantOwner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id FROM tenants
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant owners: %w", err)
	}
	defer rows.Close()

	var owners []authz.TenantOwner
	for rows.Next() {
		var o authz.TenantOwner
		if err := rows.Scan(&o.TenantID, &o.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to scan tenant owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// CreateWorkspace creates a new workspace
func (r *DirectoryRepository) CreateWorkspace(ctx context.Context, w *directory.Workspace) error {
	w.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO workspaces (tenant_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, w.TenantID, w.Name, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to insert workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by ID
func (r *DirectoryRepository) GetWorkspace(ctx context.Context, id int64) (*directory.Workspace, error) {
	var w directory.Workspace
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM workspaces
		WHERE id = $1
	`, id).Scan(&w.ID, &w.TenantID, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &w, nil
}

// CreateProject creates a new project
func (r *DirectoryRepository) CreateProject(ctx context.Context, p *directory.Project) error {
	p.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (workspace_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, p.WorkspaceID, p.Name, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID
func (r *DirectoryRepository) GetProject(ctx context.Context, id int64) (*directory.Project, error) {
	var p directory.Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM projects
		WHERE id = $1
	`, id).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// CreateTeam creates a new team
func (r *DirectoryRepository) CreateTeam(ctx context.Context, t *directory.Team) error {
	t.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO teams (workspace_id, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, t.WorkspaceID, t.Name, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by ID
func (r *DirectoryRepository) GetTeam(ctx context.Context, id int64) (*directory.Team, error) {
	var t directory.Team
	err := r.pool.QueryRow(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM teams
		WHERE id = $1
	`, id).Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, directory.ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}
