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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/testforge/testforge/internal/observability/logger"
)

// Engine is the authorization decision function. It is pure read: it holds
// no long-lived state beyond its injected collaborators, performs no writes,
// and re-reads current grant state on every call.
type Engine struct {
	catalog   *Catalog
	resolver  TenantResolver
	grants    GrantReader
	roles     RoleReader
	effective EffectiveReader
	decisions metric.Int64Counter
}

// NewEngine creates the decision engine. The catalog is the immutable value
// built at process start; repositories are the live grant state.
func NewEngine(catalog *Catalog, resolver TenantResolver, grants GrantReader, roles RoleReader, effective EffectiveReader) *Engine {
	decisions, err := otel.Meter("authz").Int64Counter(
		"authz.decisions",
		metric.WithDescription("Authorization decisions by outcome"),
	)
	if err != nil {
		decisions = nil
	}
	return &Engine{
		catalog:   catalog,
		resolver:  resolver,
		grants:    grants,
		roles:     roles,
		effective: effective,
		decisions: decisions,
	}
}

// HasPermission decides whether userID holds the "scope:action" permission
// at the given scope. The four grant sources (tenant, workspace, direct
// project, team-mediated project) are independent; the result is their
// logical OR, with the first match short-circuiting.
//
// Failure policy is fail-closed on both edges: a malformed permission string
// is a programmer error and yields (false, nil) plus a log record, never an
// error to the caller; a storage failure yields (false, err) where err wraps
// ErrLookupFailed so callers can tell "denied" from "couldn't determine" —
// but must still deny.
func (e *Engine) HasPermission(ctx context.Context, userID int64, permission string, ref ScopeRef) (bool, error) {
	perm, err := ParsePermission(permission)
	if err != nil {
		slog.WarnContext(ctx, "rejecting malformed permission check",
			logger.Component("authz"),
			logger.UserID(userID),
			logger.Permission(permission),
		)
		return e.record(ctx, false, "malformed"), nil
	}

	tenantID, workspaceID, err := e.resolver.ResolveTenant(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("%w: resolving tenant scope: %w", ErrLookupFailed, err)
	}

	// Tenant branch. When a tenant is known, grants for other tenants must
	// never satisfy the check. An unscoped check (zero ref) is considered
	// against all of the user's tenant grants; this is deliberate and only
	// reachable for tenant-creation-class actions. A ref that names a
	// workspace or project but resolves to no tenant (dangling reference,
	// pre-tenancy row) skips tenant grants entirely rather than widening the
	// check to every tenant.
	if tenantID != nil || ref.Unscoped() {
		tenantGrants, err := e.grants.TenantGrants(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("%w: reading tenant grants: %w", ErrLookupFailed, err)
		}
		var tenantRoleIDs []int64
		for _, g := range tenantGrants {
			if tenantID != nil && g.TenantID != *tenantID {
				continue
			}
			tenantRoleIDs = append(tenantRoleIDs, g.RoleID)
		}
		if ok, err := e.rolesAllow(ctx, tenantRoleIDs, perm); err != nil {
			return false, err
		} else if ok {
			return e.record(ctx, true, "tenant"), nil
		}
	}

	// Workspace branch. workspaceID is the requested workspace or the one
	// resolved from the requested project.
	if workspaceID != nil {
		roleIDs, err := e.grants.WorkspaceRoleIDs(ctx, userID, *workspaceID)
		if err != nil {
			return false, fmt.Errorf("%w: reading workspace grants: %w", ErrLookupFailed, err)
		}
		if ok, err := e.rolesAllow(ctx, roleIDs, perm); err != nil {
			return false, err
		} else if ok {
			return e.record(ctx, true, "workspace"), nil
		}
	}

	// Project branch: direct grants unioned with grants held by any team the
	// user belongs to.
	if ref.ProjectID != nil {
		direct, err := e.grants.ProjectRoleIDs(ctx, userID, *ref.ProjectID)
		if err != nil {
			return false, fmt.Errorf("%w: reading project grants: %w", ErrLookupFailed, err)
		}
		viaTeam, err := e.grants.TeamProjectRoleIDs(ctx, userID, *ref.ProjectID)
		if err != nil {
			return false, fmt.Errorf("%w: reading team project grants: %w", ErrLookupFailed, err)
		}
		if ok, err := e.rolesAllow(ctx, append(direct, viaTeam...), perm); err != nil {
			return false, err
		} else if ok {
			return e.record(ctx, true, "project"), nil
		}
	}

	return e.record(ctx, false, "no_grant"), nil
}

func (e *Engine) rolesAllow(ctx context.Context, roleIDs []int64, perm Permission) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	ok, err := e.roles.AnyRoleHasPermission(ctx, roleIDs, perm)
	if err != nil {
		return false, fmt.Errorf("%w: matching role permissions: %w", ErrLookupFailed, err)
	}
	return ok, nil
}

// EffectivePermissions returns all of a user's granted permissions grouped
// by scope instance. Decision logic never consumes this; it exists for
// UI-facing callers that render capability-aware navigation.
func (e *Engine) EffectivePermissions(ctx context.Context, userID int64) (*EffectivePermissions, error) {
	system, err := e.effective.SystemPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading system permissions: %w", ErrLookupFailed, err)
	}
	workspace, err := e.effective.WorkspacePermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading workspace permissions: %w", ErrLookupFailed, err)
	}
	project, err := e.effective.ProjectPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading project permissions: %w", ErrLookupFailed, err)
	}
	if system == nil {
		system = []string{}
	}
	if workspace == nil {
		workspace = map[int64][]string{}
	}
	if project == nil {
		project = map[int64][]string{}
	}
	return &EffectivePermissions{System: system, Workspace: workspace, Project: project}, nil
}

func (e *Engine) record(ctx context.Context, allowed bool, branch string) bool {
	if e.decisions != nil {
		outcome := "deny"
		if allowed {
			outcome = "allow"
		}
		e.decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("branch", branch),
		))
	}
	return allowed
}
