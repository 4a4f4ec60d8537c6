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

import "context"

// Repository defines the interface for identity-graph storage.
type Repository interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error)

	CreateWorkspace(ctx context.Context, w *Workspace) error
	GetWorkspace(ctx context.Context, id int64) (*Workspace, error)

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)

	CreateTeam(ctx context.Context, t *Team) error
	GetTeam(ctx context.Context, id int64) (*Team, error)
}

// Reader is the read-only slice of Repository the scope resolver needs.
type Reader interface {
	GetWorkspace(ctx context.Context, id int64) (*Workspace, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
}
