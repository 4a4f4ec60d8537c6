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

package authz

import (
	"context"
	"fmt"

	"github.com/testforge/testforge/internal/audit"
)

// Grants is the grant-management service used by the membership and
// provisioning workflows. It resolves canonical role names to ids, delegates
// the single-row writes to the store, and records audit events. The Engine
// never goes through it; decisions are read-only.
type Grants struct {
	writer      GrantWriter
	roles       RoleReader
	auditLogger audit.Logger
}

// NewGrants creates the grant-management service.
func NewGrants(writer GrantWriter, roles RoleReader, auditLogger audit.Logger) *Grants {
	return &Grants{writer: writer, roles: roles, auditLogger: auditLogger}
}

func (g *Grants) roleID(ctx context.Context, roleName string) (int64, error) {
	id, err := g.roles.RoleIDByName(ctx, roleName)
	if err != nil {
		return 0, fmt.Errorf("%w: system role %q is not seeded: %w", ErrConfiguration, roleName, err)
	}
	return id, nil
}

// AssignTenantRole grants a role to a user for a tenant. A user may hold
// tenant grants for several tenants at once.
func (g *Grants) AssignTenantRole(ctx context.Context, userID int64, roleName string, tenantID int64, grantedBy int64) error {
	roleID, err := g.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	if err := g.writer.AssignTenantRole(ctx, userID, roleID, tenantID); err != nil {
		return fmt.Errorf("failed to assign tenant role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: tenantID,
		ActorID:  grantedBy,
		Resource: roleName,
		Metadata: map[string]any{"user_id": userID, "scope": "tenant"},
	})
	return nil
}

// RevokeTenantRole removes a tenant grant.
func (g *Grants) RevokeTenantRole(ctx context.Context, userID int64, roleName string, tenantID int64, revokedBy int64) error {
	roleID, err := g.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	if err := g.writer.RevokeTenantRole(ctx, userID, roleID, tenantID); err != nil {
		return fmt.Errorf("failed to revoke tenant role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		TenantID: tenantID,
		ActorID:  revokedBy,
		Resource: roleName,
		Metadata: map[string]any{"user_id": userID, "scope": "tenant"},
	})
	return nil
}

// AssignWorkspaceRole grants a role to a user in a workspace. The relation
// holds one row per (user, workspace); re-assigning replaces the role.
func (g *Grants) AssignWorkspaceRole(ctx context.Context, userID, workspaceID int64, roleName string, grantedBy int64) error {
	roleID, err := g.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	if err := g.writer.AssignWorkspaceRole(ctx, userID, workspaceID, roleID); err != nil {
		return fmt.Errorf("failed to assign workspace role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  grantedBy,
		Resource: roleName,
		Metadata: map[string]any{"user_id": userID, "workspace_id": workspaceID, "scope": "workspace"},
	})
	return nil
}

// RevokeWorkspaceRole removes a user's workspace grant.
func (g *Grants) RevokeWorkspaceRole(ctx context.Context, userID, workspaceID int64, revokedBy int64) error {
	if err := g.writer.RevokeWorkspaceRole(ctx, userID, workspaceID); err != nil {
		return fmt.Errorf("failed to revoke workspace role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  revokedBy,
		Metadata: map[string]any{"user_id": userID, "workspace_id": workspaceID, "scope": "workspace"},
	})
	return nil
}

// AssignProjectRole grants a role to a user directly on a project.
func (g *Grants) AssignProjectRole(ctx context.Context, userID, projectID int64, roleName string, grantedBy int64) error {
	roleID, err := g.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	if err := g.writer.AssignProjectRole(ctx, userID, projectID, roleID); err != nil {
		return fmt.Errorf("failed to assign project role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  grantedBy,
		Resource: roleName,
		Metadata: map[string]any{"user_id": userID, "project_id": projectID, "scope": "project"},
	})
	return nil
}

// RevokeProjectRole removes a user's direct project grant.
func (g *Grants) RevokeProjectRole(ctx context.Context, userID, projectID int64, revokedBy int64) error {
	if err := g.writer.RevokeProjectRole(ctx, userID, projectID); err != nil {
		return fmt.Errorf("failed to revoke project role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  revokedBy,
		Metadata: map[string]any{"user_id": userID, "project_id": projectID, "scope": "project"},
	})
	return nil
}

// AssignTeamProjectRole grants a role on a project to a whole team.
func (g *Grants) AssignTeamProjectRole(ctx context.Context, teamID, projectID int64, roleName string, grantedBy int64) error {
	roleID, err := g.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	if err := g.writer.AssignTeamProjectRole(ctx, teamID, projectID, roleID); err != nil {
		return fmt.Errorf("failed to assign team project role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  grantedBy,
		Resource: roleName,
		Metadata: map[string]any{"team_id": teamID, "project_id": projectID, "scope": "project"},
	})
	return nil
}

// RevokeTeamProjectRole removes a team's project grant.
func (g *Grants) RevokeTeamProjectRole(ctx context.Context, teamID, projectID int64, revokedBy int64) error {
	if err := g.writer.RevokeTeamProjectRole(ctx, teamID, projectID); err != nil {
		return fmt.Errorf("failed to revoke team project role: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  revokedBy,
		Metadata: map[string]any{"team_id": teamID, "project_id": projectID, "scope": "project"},
	})
	return nil
}

// AddTeamMember adds a user to a team; the user immediately inherits the
// team's project grants.
func (g *Grants) AddTeamMember(ctx context.Context, userID, teamID int64, addedBy int64) error {
	if err := g.writer.AddTeamMember(ctx, userID, teamID); err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTeamMemberAdded,
		ActorID:  addedBy,
		Metadata: map[string]any{"user_id": userID, "team_id": teamID},
	})
	return nil
}

// RemoveTeamMember removes a user from a team, severing the team-mediated
// grant path for that user.
func (g *Grants) RemoveTeamMember(ctx context.Context, userID, teamID int64, removedBy int64) error {
	if err := g.writer.RemoveTeamMember(ctx, userID, teamID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTeamMemberRemoved,
		ActorID:  removedBy,
		Metadata: map[string]any{"user_id": userID, "team_id": teamID},
	})
	return nil
}
