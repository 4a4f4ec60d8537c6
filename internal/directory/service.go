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

package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/authz"
)

// Service provides the provisioning workflows that both create identity
// graph nodes and produce the initial grants: a new tenant's owner becomes
// Tenant Admin, a workspace creator becomes Workspace Admin, a project
// creator becomes Project Admin.
type Service struct {
	repo        Repository
	grants      *authz.Grants
	roles       authz.RoleReader
	auditLogger audit.Logger
}

// NewService creates a directory service.
func NewService(repo Repository, grants *authz.Grants, roles authz.RoleReader, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, grants: grants, roles: roles, auditLogger: auditLogger}
}

// CreateTenant creates a tenant and grants its owner the Tenant Admin role.
// The owner grant is part of the creation contract: if the Tenant Admin role
// is missing from the registry (catalog never seeded), the creation is
// rejected up front rather than leaving a tenant nobody can administer.
func (s *Service) CreateTenant(ctx context.Context, name string, ownerID int64) (*Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	// Verify the owner grant can be made before the tenant exists: a missing
	// Tenant Admin role aborts the whole creation.
	if _, err := s.roles.RoleIDByName(ctx, authz.RoleTenantAdmin); err != nil {
		return nil, fmt.Errorf("%w: role %q must be seeded before tenants can be created: %w",
			authz.ErrConfiguration, authz.RoleTenantAdmin, err)
	}

	t := &Tenant{
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if err := s.grants.AssignTenantRole(ctx, ownerID, authz.RoleTenantAdmin, t.ID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to grant tenant owner role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  ownerID,
		Resource: name,
	})
	return t, nil
}

// CreateWorkspace creates a workspace under a tenant and grants the creator
// the Workspace Admin role.
func (s *Service) CreateWorkspace(ctx context.Context, tenantID int64, name string, createdBy int64) (*Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}
	if _, err := s.repo.GetTenant(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to load tenant %d: %w", tenantID, err)
	}

	w := &Workspace{
		TenantID:  &tenantID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateWorkspace(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := s.grants.AssignWorkspaceRole(ctx, createdBy, w.ID, authz.RoleWorkspaceAdmin, createdBy); err != nil {
		return nil, fmt.Errorf("failed to grant workspace admin role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeWorkspaceCreated,
		TenantID: tenantID,
		ActorID:  createdBy,
		Resource: name,
		Metadata: map[string]any{"workspace_id": w.ID},
	})
	return w, nil
}

// CreateProject creates a project in a workspace and grants the creator the
// Project Admin role.
func (s *Service) CreateProject(ctx context.Context, workspaceID int64, name string, createdBy int64) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %d: %w", workspaceID, err)
	}

	p := &Project{
		WorkspaceID: workspace.ID,
		Name:        name,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if err := s.grants.AssignProjectRole(ctx, createdBy, p.ID, authz.RoleProjectAdmin, createdBy); err != nil {
		return nil, fmt.Errorf("failed to grant project admin role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProjectCreated,
		ActorID:  createdBy,
		Resource: name,
		Metadata: map[string]any{"workspace_id": workspace.ID, "project_id": p.ID},
	})
	return p, nil
}

// CreateTeam creates a team in a workspace. Teams start empty and with no
// project grants.
func (s *Service) CreateTeam(ctx context.Context, workspaceID int64, name string, createdBy int64) (*Team, error) {
	if name == "" {
		return nil, fmt.Errorf("team name is required")
	}
	if _, err := s.repo.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to load workspace %d: %w", workspaceID, err)
	}

	t := &Team{
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateTeam(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return t, nil
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, id int64) (*Project, error) {
	return s.repo.GetProject(ctx, id)
}

// GetWorkspace returns a workspace by id.
func (s *Service) GetWorkspace(ctx context.Context, id int64) (*Workspace, error) {
	return s.repo.GetWorkspace(ctx, id)
}

// GetTeam returns a team by id.
func (s *Service) GetTeam(ctx context.Context, id int64) (*Team, error) {
	return s.repo.GetTeam(ctx, id)
}
