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
	"errors"
)

// Domain errors
var (
	// ErrMalformedPermission marks a permission string that does not parse as
	// "scope:action". The Engine never returns it to callers; it fails closed.
	ErrMalformedPermission = errors.New("malformed permission string")

	// ErrLookupFailed marks a storage failure on the decision path. Callers
	// must treat it as a denial, never as an allow, but can distinguish it
	// from a plain "not granted".
	ErrLookupFailed = errors.New("authorization lookup failed")

	// ErrConfiguration marks a deploy-time invariant violation: a role
	// referencing an undeclared permission, or a required system role missing
	// where code assumes it exists. The operation depending on it must abort.
	ErrConfiguration = errors.New("authorization configuration error")

	ErrRoleNotFound  = errors.New("role not found")
	ErrGrantNotFound = errors.New("grant not found")
)

// ScopeRef optionally narrows a permission check to a tenant, a workspace or
// a project. A zero ScopeRef is an unscoped check (e.g. "may this user create
// a tenant"), which is evaluated against all of the user's tenant grants.
// Setting TenantID names the tenant context directly, for checks whose target
// is the tenant itself rather than something inside it.
type ScopeRef struct {
	TenantID    *int64
	WorkspaceID *int64
	ProjectID   *int64
}

// Unscoped reports whether the reference names no scope at all.
func (s ScopeRef) Unscoped() bool {
	return s.TenantID == nil && s.WorkspaceID == nil && s.ProjectID == nil
}

// TenantGrant is the decision-path projection of a user_tenant_roles row.
type TenantGrant struct {
	RoleID   int64
	TenantID int64
}

// EffectivePermissions groups all of a user's granted permission strings by
// scope instance. It is a UI-facing convenience projection built from the
// same four grant relations the Engine reads.
type EffectivePermissions struct {
	System    []string           `json:"system"`
	Workspace map[int64][]string `json:"workspace"`
	Project   map[int64][]string `json:"project"`
}

// GrantReader is the read projection of the grant store consumed by the
// Engine. Implementations must surface only canonical role ids; rows still
// carrying nothing but a legacy label are invisible to decisions.
type GrantReader interface {
	// TenantGrants returns every tenant-level grant the user holds, across
	// all tenants. The Engine applies tenant filtering itself.
	TenantGrants(ctx context.Context, userID int64) ([]TenantGrant, error)

	// WorkspaceRoleIDs returns role ids granted to the user directly on the
	// workspace.
	WorkspaceRoleIDs(ctx context.Context, userID, workspaceID int64) ([]int64, error)

	// ProjectRoleIDs returns role ids granted to the user directly on the
	// project.
	ProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error)

	// TeamProjectRoleIDs returns role ids granted on the project to any team
	// the user is a member of.
	TeamProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error)
}

// RoleReader answers permission-membership questions about persisted roles.
type RoleReader interface {
	// AnyRoleHasPermission reports whether any of the roles carries the exact
	// (scope, action) permission. No wildcard or action hierarchy exists.
	AnyRoleHasPermission(ctx context.Context, roleIDs []int64, p Permission) (bool, error)

	// RoleIDByName resolves a system role by its canonical name. Returns
	// ErrRoleNotFound when the catalog has not been seeded.
	RoleIDByName(ctx context.Context, name string) (int64, error)
}

// EffectiveReader builds the per-scope permission aggregate.
type EffectiveReader interface {
	SystemPermissions(ctx context.Context, userID int64) ([]string, error)
	WorkspacePermissions(ctx context.Context, userID int64) (map[int64][]string, error)
	ProjectPermissions(ctx context.Context, userID int64) (map[int64][]string, error)
}

// TenantResolver walks the identity graph upward: project -> workspace ->
// tenant. A dangling reference resolves to "no tenant context" (nil), not an
// error, so that tenant-level grants are skipped rather than the check
// falsely denying or allowing.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, ref ScopeRef) (tenantID, workspaceID *int64, err error)
}

// GrantWriter mutates the four grant relations and team membership. Every
// write is a single-row atomic statement; assignment is idempotent by the
// relation's composite key.
type GrantWriter interface {
	AssignTenantRole(ctx context.Context, userID, roleID, tenantID int64) error
	RevokeTenantRole(ctx context.Context, userID, roleID, tenantID int64) error

	AssignWorkspaceRole(ctx context.Context, userID, workspaceID, roleID int64) error
	RevokeWorkspaceRole(ctx context.Context, userID, workspaceID int64) error

	AssignProjectRole(ctx context.Context, userID, projectID, roleID int64) error
	RevokeProjectRole(ctx context.Context, userID, projectID int64) error

	AssignTeamProjectRole(ctx context.Context, teamID, projectID, roleID int64) error
	RevokeTeamProjectRole(ctx context.Context, teamID, projectID int64) error

	AddTeamMember(ctx context.Context, userID, teamID int64) error
	RemoveTeamMember(ctx context.Context, userID, teamID int64) error
}

// LegacyGrant is a grant row that predates the canonical role model: its
// role_id is unset and only the free-text label survives. Only the
// Bootstrapper reads these; decision code never sees the label.
type LegacyGrant struct {
	SubjectID int64 // user id, or team id for team_project_roles
	ScopeID   int64 // workspace or project id
	Label     string
}

// RegistryWriter seeds the permission catalog and role registry. All
// operations are idempotent upserts keyed on (scope, action) and role name.
type RegistryWriter interface {
	UpsertPermission(ctx context.Context, p Permission, description string) (int64, error)
	UpsertRole(ctx context.Context, name, description string) (int64, error)
	EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error
}

// BackfillStore exposes the legacy-label migration surface. The Bootstrapper
// is the only writer of role_id from a legacy label.
type BackfillStore interface {
	LegacyWorkspaceGrants(ctx context.Context) ([]LegacyGrant, error)
	SetWorkspaceGrantRole(ctx context.Context, userID, workspaceID, roleID int64) error

	LegacyProjectGrants(ctx context.Context) ([]LegacyGrant, error)
	SetProjectGrantRole(ctx context.Context, userID, projectID, roleID int64) error

	LegacyTeamProjectGrants(ctx context.Context) ([]LegacyGrant, error)
	SetTeamProjectGrantRole(ctx context.Context, teamID, projectID, roleID int64) error
}
