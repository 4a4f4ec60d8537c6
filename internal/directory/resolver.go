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
	"errors"
	"fmt"

	"github.com/testforge/testforge/internal/authz"
)

// Resolver implements authz.TenantResolver over the identity graph: project
// -> workspace -> tenant.
type Resolver struct {
	repo Reader
}

// NewResolver creates a scope resolver backed by the directory.
func NewResolver(repo Reader) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveTenant walks the ancestry of the referenced scope. A reference to a
// workspace or project that no longer exists resolves to "no tenant context"
// rather than an error: the engine then skips tenant-level filtering instead
// of falsely denying or allowing. The resolved workspace id is returned
// alongside so a project-scoped check can evaluate workspace grants without
// a second walk.
func (r *Resolver) ResolveTenant(ctx context.Context, ref authz.ScopeRef) (*int64, *int64, error) {
	// An explicit tenant reference is the tenant context; there is no
	// ancestry to walk.
	if ref.TenantID != nil {
		return ref.TenantID, ref.WorkspaceID, nil
	}

	workspaceID := ref.WorkspaceID

	if workspaceID == nil && ref.ProjectID != nil {
		project, err := r.repo.GetProject(ctx, *ref.ProjectID)
		if err != nil {
			if errors.Is(err, ErrProjectNotFound) {
				return nil, nil, nil
			}
			return nil, nil, fmt.Errorf("failed to resolve project %d: %w", *ref.ProjectID, err)
		}
		workspaceID = &project.WorkspaceID
	}

	if workspaceID == nil {
		return nil, nil, nil
	}

	workspace, err := r.repo.GetWorkspace(ctx, *workspaceID)
	if err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			return nil, workspaceID, nil
		}
		return nil, nil, fmt.Errorf("failed to resolve workspace %d: %w", *workspaceID, err)
	}

	// TenantID may be unset on pre-tenancy rows; that is "no tenant
	// context", not an error.
	return workspace.TenantID, workspaceID, nil
}
