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

package authz_test

import (
	"context"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/authz"
)

// MockRegistry implements authz.RegistryWriter and authz.RoleReader in
// memory. Tests seed it directly or run a Bootstrapper against it.
type MockRegistry struct {
	nextID    int64
	permIDs   map[authz.Permission]int64
	roleIDs   map[string]int64
	rolePerms map[int64]map[int64]bool

	UpsertPermissionCalls int
	UpsertRoleCalls       int
	LinkCalls             int
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		permIDs:   make(map[authz.Permission]int64),
		roleIDs:   make(map[string]int64),
		rolePerms: make(map[int64]map[int64]bool),
	}
}

func (m *MockRegistry) UpsertPermission(ctx context.Context, p authz.Permission, description string) (int64, error) {
	m.UpsertPermissionCalls++
	if id, ok := m.permIDs[p]; ok {
		return id, nil
	}
	m.nextID++
	m.permIDs[p] = m.nextID
	return m.nextID, nil
}

func (m *MockRegistry) UpsertRole(ctx context.Context, name, description string) (int64, error) {
	m.UpsertRoleCalls++
	if id, ok := m.roleIDs[name]; ok {
		return id, nil
	}
	m.nextID++
	m.roleIDs[name] = m.nextID
	m.rolePerms[m.nextID] = make(map[int64]bool)
	return m.nextID, nil
}

func (m *MockRegistry) EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error {
	m.LinkCalls++
	if m.rolePerms[roleID] == nil {
		m.rolePerms[roleID] = make(map[int64]bool)
	}
	m.rolePerms[roleID][permissionID] = true
	return nil
}

func (m *MockRegistry) RoleIDByName(ctx context.Context, name string) (int64, error) {
	if id, ok := m.roleIDs[name]; ok {
		return id, nil
	}
	return 0, authz.ErrRoleNotFound
}

func (m *MockRegistry) AnyRoleHasPermission(ctx context.Context, roleIDs []int64, p authz.Permission) (bool, error) {
	permID, ok := m.permIDs[p]
	if !ok {
		return false, nil
	}
	for _, roleID := range roleIDs {
		if m.rolePerms[roleID][permID] {
			return true, nil
		}
	}
	return false, nil
}

// RoleLinkCount returns how many permissions are linked to the named role.
func (m *MockRegistry) RoleLinkCount(name string) int {
	return len(m.rolePerms[m.roleIDs[name]])
}

// Seed registers a role carrying the given permissions and returns its id.
func (m *MockRegistry) Seed(name string, perms ...string) int64 {
	ctx := context.Background()
	roleID, _ := m.UpsertRole(ctx, name, "System Role")
	for _, p := range perms {
		perm, _ := authz.ParsePermission(p)
		permID, _ := m.UpsertPermission(ctx, perm, "")
		_ = m.EnsureRolePermission(ctx, roleID, permID)
	}
	return roleID
}

// MockGrantStore implements authz.GrantReader, authz.GrantWriter and
// authz.BackfillStore in memory.
type MockGrantStore struct {
	tenantGrants     map[int64][]authz.TenantGrant
	workspaceRoles   map[int64]map[int64][]int64 // user -> workspace -> roles
	projectRoles     map[int64]map[int64][]int64 // user -> project -> roles
	teamProjectRoles map[int64]map[int64][]int64 // team -> project -> roles
	teamMembers      map[int64]map[int64]bool    // user -> teams

	legacyWorkspace []authz.LegacyGrant
	legacyProject   []authz.LegacyGrant
	legacyTeam      []authz.LegacyGrant

	// Backfill writes recorded as subject -> scope -> role.
	backfilled map[[2]int64]int64

	ReadErr error
}

func NewMockGrantStore() *MockGrantStore {
	return &MockGrantStore{
		tenantGrants:     make(map[int64][]authz.TenantGrant),
		workspaceRoles:   make(map[int64]map[int64][]int64),
		projectRoles:     make(map[int64]map[int64][]int64),
		teamProjectRoles: make(map[int64]map[int64][]int64),
		teamMembers:      make(map[int64]map[int64]bool),
		backfilled:       make(map[[2]int64]int64),
	}
}

func (m *MockGrantStore) TenantGrants(ctx context.Context, userID int64) ([]authz.TenantGrant, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.tenantGrants[userID], nil
}

func (m *MockGrantStore) WorkspaceRoleIDs(ctx context.Context, userID, workspaceID int64) ([]int64, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.workspaceRoles[userID][workspaceID], nil
}

func (m *MockGrantStore) ProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.projectRoles[userID][projectID], nil
}

func (m *MockGrantStore) TeamProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var roles []int64
	for teamID := range m.teamMembers[userID] {
		roles = append(roles, m.teamProjectRoles[teamID][projectID]...)
	}
	return roles, nil
}

func (m *MockGrantStore) AssignTenantRole(ctx context.Context, userID, roleID, tenantID int64) error {
	for _, g := range m.tenantGrants[userID] {
		if g.RoleID == roleID && g.TenantID == tenantID {
			return nil
		}
	}
	m.tenantGrants[userID] = append(m.tenantGrants[userID], authz.TenantGrant{RoleID: roleID, TenantID: tenantID})
	return nil
}

func (m *MockGrantStore) RevokeTenantRole(ctx context.Context, userID, roleID, tenantID int64) error {
	grants := m.tenantGrants[userID]
	for i, g := range grants {
		if g.RoleID == roleID && g.TenantID == tenantID {
			m.tenantGrants[userID] = append(grants[:i], grants[i+1:]...)
			return nil
		}
	}
	return authz.ErrGrantNotFound
}

func (m *MockGrantStore) AssignWorkspaceRole(ctx context.Context, userID, workspaceID, roleID int64) error {
	if m.workspaceRoles[userID] == nil {
		m.workspaceRoles[userID] = make(map[int64][]int64)
	}
	m.workspaceRoles[userID][workspaceID] = []int64{roleID}
	return nil
}

func (m *MockGrantStore) RevokeWorkspaceRole(ctx context.Context, userID, workspaceID int64) error {
	if len(m.workspaceRoles[userID][workspaceID]) == 0 {
		return authz.ErrGrantNotFound
	}
	delete(m.workspaceRoles[userID], workspaceID)
	return nil
}

func (m *MockGrantStore) AssignProjectRole(ctx context.Context, userID, projectID, roleID int64) error {
	if m.projectRoles[userID] == nil {
		m.projectRoles[userID] = make(map[int64][]int64)
	}
	m.projectRoles[userID][projectID] = []int64{roleID}
	return nil
}

func (m *MockGrantStore) RevokeProjectRole(ctx context.Context, userID, projectID int64) error {
	if len(m.projectRoles[userID][projectID]) == 0 {
		return authz.ErrGrantNotFound
	}
	delete(m.projectRoles[userID], projectID)
	return nil
}

func (m *MockGrantStore) AssignTeamProjectRole(ctx context.Context, teamID, projectID, roleID int64) error {
	if m.teamProjectRoles[teamID] == nil {
		m.teamProjectRoles[teamID] = make(map[int64][]int64)
	}
	m.teamProjectRoles[teamID][projectID] = []int64{roleID}
	return nil
}

func (m *MockGrantStore) RevokeTeamProjectRole(ctx context.Context, teamID, projectID int64) error {
	if len(m.teamProjectRoles[teamID][projectID]) == 0 {
		return authz.ErrGrantNotFound
	}
	delete(m.teamProjectRoles[teamID], projectID)
	return nil
}

func (m *MockGrantStore) AddTeamMember(ctx context.Context, userID, teamID int64) error {
	if m.teamMembers[userID] == nil {
		m.teamMembers[userID] = make(map[int64]bool)
	}
	m.teamMembers[userID][teamID] = true
	return nil
}

func (m *MockGrantStore) RemoveTeamMember(ctx context.Context, userID, teamID int64) error {
	if !m.teamMembers[userID][teamID] {
		return authz.ErrGrantNotFound
	}
	delete(m.teamMembers[userID], teamID)
	return nil
}

func (m *MockGrantStore) LegacyWorkspaceGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return m.legacyWorkspace, nil
}

func (m *MockGrantStore) SetWorkspaceGrantRole(ctx context.Context, userID, workspaceID, roleID int64) error {
	m.backfilled[[2]int64{userID, workspaceID}] = roleID
	_ = m.AssignWorkspaceRole(ctx, userID, workspaceID, roleID)
	return nil
}

func (m *MockGrantStore) LegacyProjectGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return m.legacyProject, nil
}

func (m *MockGrantStore) SetProjectGrantRole(ctx context.Context, userID, projectID, roleID int64) error {
	m.backfilled[[2]int64{userID, projectID}] = roleID
	_ = m.AssignProjectRole(ctx, userID, projectID, roleID)
	return nil
}

func (m *MockGrantStore) LegacyTeamProjectGrants(ctx context.Context) ([]authz.LegacyGrant, error) {
	return m.legacyTeam, nil
}

func (m *MockGrantStore) SetTeamProjectGrantRole(ctx context.Context, teamID, projectID, roleID int64) error {
	m.backfilled[[2]int64{teamID, projectID}] = roleID
	_ = m.AssignTeamProjectRole(ctx, teamID, projectID, roleID)
	return nil
}

// MockResolver implements authz.TenantResolver from two lookup tables.
type MockResolver struct {
	projectWorkspace map[int64]int64  // project -> workspace
	workspaceTenant  map[int64]*int64 // workspace -> tenant (nil for legacy rows)
	Err              error
}

func NewMockResolver() *MockResolver {
	return &MockResolver{
		projectWorkspace: make(map[int64]int64),
		workspaceTenant:  make(map[int64]*int64),
	}
}

func (m *MockResolver) AddWorkspace(workspaceID int64, tenantID *int64) {
	m.workspaceTenant[workspaceID] = tenantID
}

func (m *MockResolver) AddProject(projectID, workspaceID int64) {
	m.projectWorkspace[projectID] = workspaceID
}

func (m *MockResolver) ResolveTenant(ctx context.Context, ref authz.ScopeRef) (*int64, *int64, error) {
	if m.Err != nil {
		return nil, nil, m.Err
	}
	if ref.TenantID != nil {
		return ref.TenantID, ref.WorkspaceID, nil
	}

	workspaceID := ref.WorkspaceID
	if ref.ProjectID != nil {
		if wsID, ok := m.projectWorkspace[*ref.ProjectID]; ok {
			workspaceID = &wsID
		}
	}
	if workspaceID == nil {
		return nil, nil, nil
	}
	return m.workspaceTenant[*workspaceID], workspaceID, nil
}

// MockEffective implements authz.EffectiveReader from static maps.
type MockEffective struct {
	System    []string
	Workspace map[int64][]string
	Project   map[int64][]string
}

func (m *MockEffective) SystemPermissions(ctx context.Context, userID int64) ([]string, error) {
	return m.System, nil
}

func (m *MockEffective) WorkspacePermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	return m.Workspace, nil
}

func (m *MockEffective) ProjectPermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	return m.Project, nil
}

// MockOwnerLister implements authz.TenantOwnerLister.
type MockOwnerLister struct {
	Owners []authz.TenantOwner
}

func (m *MockOwnerLister) ListTenantOwners(ctx context.Context) ([]authz.TenantOwner, error) {
	return m.Owners, nil
}

// MockAuditLogger records audit events for assertions.
type MockAuditLogger struct {
	Events []audit.Event
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) {
	m.Events = append(m.Events, event)
}
