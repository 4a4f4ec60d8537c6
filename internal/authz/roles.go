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

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names for system roles stored in the database.
// System roles have no owning tenant (roles.tenant_id IS NULL).
// -----------------------------------------------------------------------------

const (
	// RoleTenantAdmin administers an entire tenant. Granted to the tenant
	// owner at tenant creation.
	RoleTenantAdmin = "Tenant Admin"

	// RoleWorkspaceAdmin administers a single workspace and, through
	// project-scoped permissions held at workspace level, every project in it.
	RoleWorkspaceAdmin = "Workspace Admin"

	// RoleWorkspaceMember is basic read access to a workspace.
	RoleWorkspaceMember = "Workspace Member"

	RoleProjectAdmin  = "Project Admin"
	RoleProjectEditor = "Project Editor"
	RoleProjectViewer = "Project Viewer"
)

// -----------------------------------------------------------------------------
// Permission String Constants
// Canonical "scope:action" identifiers. Scope names the resource type, not
// the level the grant is held at.
// -----------------------------------------------------------------------------

const (
	PermTenantManageSettings  = "tenant:manage_settings"
	PermTenantManageUsers     = "tenant:manage_users"
	PermTenantCreateWorkspace = "tenant:create_workspace"

	PermWorkspaceView           = "workspace:view"
	PermWorkspaceCreateTeam     = "workspace:create_team"
	PermWorkspaceManageUsers    = "workspace:manage_users"
	PermWorkspaceManageSettings = "workspace:manage_settings"
	PermWorkspaceDelete         = "workspace:delete_workspace"

	PermProjectCreate       = "project:create"
	PermProjectView         = "project:view"
	PermProjectUpdate       = "project:update"
	PermProjectDelete       = "project:delete"
	PermProjectManageAccess = "project:manage_access"
	PermProjectCreateSuite  = "project:create_suite"

	PermTestCreate = "test:create"
	PermTestRun    = "test:run"
	PermTestView   = "test:view"
)

// DefaultRoles is the static declaration consumed by the Bootstrapper at
// deploy time. Changing this table and redeploying is the only supported way
// to alter what a system role grants; re-seeding only ever adds permission
// links, it never removes them.
var DefaultRoles = map[string][]string{
	RoleTenantAdmin: {
		PermTenantManageSettings,
		PermTenantManageUsers,
		PermTenantCreateWorkspace,
		PermWorkspaceView,
		PermWorkspaceCreateTeam,
		PermWorkspaceManageUsers,
		PermWorkspaceManageSettings,
		PermWorkspaceDelete,
		PermProjectCreate,
		PermProjectView,
		PermProjectUpdate,
		PermProjectDelete,
		PermProjectManageAccess,
		PermProjectCreateSuite,
		PermTestCreate,
		PermTestRun,
		PermTestView,
	},
	RoleWorkspaceAdmin: {
		PermWorkspaceView,
		PermWorkspaceCreateTeam,
		PermWorkspaceManageUsers,
		PermWorkspaceManageSettings,
		PermWorkspaceDelete,
		PermProjectCreate,
		PermProjectView,
		PermProjectUpdate,
		PermProjectDelete,
		PermProjectManageAccess,
		PermProjectCreateSuite,
		PermTestCreate,
		PermTestRun,
		PermTestView,
	},
	RoleWorkspaceMember: {
		PermWorkspaceView,
		PermProjectView,
		PermTestView,
	},
	RoleProjectAdmin: {
		PermProjectView,
		PermProjectUpdate,
		PermProjectDelete,
		PermProjectManageAccess,
		PermProjectCreateSuite,
		PermTestCreate,
		PermTestRun,
		PermTestView,
	},
	RoleProjectEditor: {
		PermProjectView,
		PermProjectCreateSuite,
		PermTestCreate,
		PermTestRun,
		PermTestView,
	},
	RoleProjectViewer: {
		PermProjectView,
		PermTestView,
	},
}
