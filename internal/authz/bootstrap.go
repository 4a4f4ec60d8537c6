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
	"log/slog"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/observability/logger"
)

// TenantOwner pairs a tenant with its owning user.
type TenantOwner struct {
	TenantID int64
	OwnerID  int64
}

// TenantOwnerLister is the slice of the identity graph the Bootstrapper
// needs: every tenant and who owns it.
type TenantOwnerLister interface {
	ListTenantOwners(ctx context.Context) ([]TenantOwner, error)
}

// Bootstrapper seeds the permission catalog and role registry, backfills
// legacy string-label grants to canonical role ids, and repairs missing
// tenant-owner grants. It runs at deploy time, not per request, and is safe
// to re-run any number of times: catalog and registry rows are keyed on
// (scope, action) and role name, and every write is an upsert.
type Bootstrapper struct {
	catalog     *Catalog
	registry    RegistryWriter
	backfill    BackfillStore
	grants      GrantWriter
	owners      TenantOwnerLister
	auditLogger audit.Logger
}

// NewBootstrapper creates the deploy-time seeding routine.
func NewBootstrapper(catalog *Catalog, registry RegistryWriter, backfill BackfillStore, grants GrantWriter, owners TenantOwnerLister, auditLogger audit.Logger) *Bootstrapper {
	return &Bootstrapper{
		catalog:     catalog,
		registry:    registry,
		backfill:    backfill,
		grants:      grants,
		owners:      owners,
		auditLogger: auditLogger,
	}
}

// Run executes the full bootstrap sequence: catalog upserts, role upserts
// with additive permission links, legacy-label backfill, and tenant-owner
// grant repair. Any failure aborts the run; partial seeding is recovered by
// simply re-running.
func (b *Bootstrapper) Run(ctx context.Context) error {
	roleIDs, err := b.seedRegistry(ctx)
	if err != nil {
		return err
	}
	if err := b.backfillLegacyGrants(ctx, roleIDs); err != nil {
		return err
	}
	if err := b.ensureTenantOwnerGrants(ctx, roleIDs); err != nil {
		return err
	}
	b.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAuthzBootstrap,
		Metadata: map[string]any{"roles": len(roleIDs)},
	})
	return nil
}

// seedRegistry upserts every catalog permission and every system role, then
// links each role to its declared permissions. Links are additive: a role
// never shrinks under re-seeding.
func (b *Bootstrapper) seedRegistry(ctx context.Context) (map[string]int64, error) {
	permIDs := make(map[Permission]int64, len(b.catalog.Permissions()))
	for _, p := range b.catalog.Permissions() {
		id, err := b.registry.UpsertPermission(ctx, p, b.catalog.Description(p))
		if err != nil {
			return nil, fmt.Errorf("failed to upsert permission %s: %w", p, err)
		}
		permIDs[p] = id
	}

	roleIDs := make(map[string]int64, len(b.catalog.RoleNames()))
	for _, name := range b.catalog.RoleNames() {
		id, err := b.registry.UpsertRole(ctx, name, "System Role")
		if err != nil {
			return nil, fmt.Errorf("failed to upsert role %q: %w", name, err)
		}
		roleIDs[name] = id

		for _, p := range b.catalog.RolePermissions(name) {
			permID, ok := permIDs[p]
			if !ok {
				// Unreachable when the catalog came from NewCatalog, which
				// registers every referenced permission.
				return nil, fmt.Errorf("%w: role %q references unregistered permission %s", ErrConfiguration, name, p)
			}
			if err := b.registry.EnsureRolePermission(ctx, id, permID); err != nil {
				return nil, fmt.Errorf("failed to link %s to role %q: %w", p, name, err)
			}
		}
		slog.InfoContext(ctx, "seeded role", logger.Component("bootstrap"), logger.Role(name))
	}
	return roleIDs, nil
}

// legacyWorkspaceRole maps a pre-migration workspace label to a canonical
// role name. The legacy data only ever held "admin" and "member"; anything
// unrecognized degrades to member rather than silently widening access.
func legacyWorkspaceRole(label string) string {
	if label == "admin" {
		return RoleWorkspaceAdmin
	}
	return RoleWorkspaceMember
}

// legacyProjectRole maps a pre-migration project access level to a canonical
// role name.
func legacyProjectRole(label string) string {
	switch label {
	case "admin":
		return RoleProjectAdmin
	case "editor":
		return RoleProjectEditor
	default:
		return RoleProjectViewer
	}
}

func (b *Bootstrapper) backfillLegacyGrants(ctx context.Context, roleIDs map[string]int64) error {
	resolve := func(roleName string) (int64, error) {
		id, ok := roleIDs[roleName]
		if !ok {
			return 0, fmt.Errorf("%w: backfill target role %q missing; seed the catalog first", ErrConfiguration, roleName)
		}
		return id, nil
	}

	wsGrants, err := b.backfill.LegacyWorkspaceGrants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list legacy workspace grants: %w", err)
	}
	for _, g := range wsGrants {
		roleID, err := resolve(legacyWorkspaceRole(g.Label))
		if err != nil {
			return err
		}
		if err := b.backfill.SetWorkspaceGrantRole(ctx, g.SubjectID, g.ScopeID, roleID); err != nil {
			return fmt.Errorf("failed to backfill workspace grant: %w", err)
		}
	}

	projGrants, err := b.backfill.LegacyProjectGrants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list legacy project grants: %w", err)
	}
	for _, g := range projGrants {
		roleID, err := resolve(legacyProjectRole(g.Label))
		if err != nil {
			return err
		}
		if err := b.backfill.SetProjectGrantRole(ctx, g.SubjectID, g.ScopeID, roleID); err != nil {
			return fmt.Errorf("failed to backfill project grant: %w", err)
		}
	}

	teamGrants, err := b.backfill.LegacyTeamProjectGrants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list legacy team project grants: %w", err)
	}
	for _, g := range teamGrants {
		roleID, err := resolve(legacyProjectRole(g.Label))
		if err != nil {
			return err
		}
		if err := b.backfill.SetTeamProjectGrantRole(ctx, g.SubjectID, g.ScopeID, roleID); err != nil {
			return fmt.Errorf("failed to backfill team project grant: %w", err)
		}
	}

	if n := len(wsGrants) + len(projGrants) + len(teamGrants); n > 0 {
		slog.InfoContext(ctx, "backfilled legacy grants", logger.Component("bootstrap"), slog.Int("count", n))
	}
	return nil
}

// ensureTenantOwnerGrants makes sure every tenant owner holds the Tenant
// Admin role for their tenant. The underlying write is keyed on the full
// (user, role, tenant) triple, so re-running is a no-op.
func (b *Bootstrapper) ensureTenantOwnerGrants(ctx context.Context, roleIDs map[string]int64) error {
	roleID, ok := roleIDs[RoleTenantAdmin]
	if !ok {
		return fmt.Errorf("%w: role %q missing after seeding", ErrConfiguration, RoleTenantAdmin)
	}

	owners, err := b.owners.ListTenantOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenant owners: %w", err)
	}
	for _, o := range owners {
		if err := b.grants.AssignTenantRole(ctx, o.OwnerID, roleID, o.TenantID); err != nil {
			return fmt.Errorf("failed to grant tenant admin to owner of tenant %d: %w", o.TenantID, err)
		}
	}
	return nil
}
