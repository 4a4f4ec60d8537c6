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

// Package directory owns the tenant / workspace / project / team identity
// graph. The authorization engine consumes it read-only to resolve scope
// ancestry; the provisioning workflows here are the grant-producing side.
package directory

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrAlreadyExists     = errors.New("already exists")
)

// Tenant is the top-level isolation boundary. Every tenant has exactly one
// owning user, set at creation.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Workspace is a tenant-scoped container of teams and projects. TenantID is
// nullable only for rows created before tenancy was introduced; the resolver
// treats such rows as "no tenant context".
type Workspace struct {
	ID        int64     `json:"id"`
	TenantID  *int64    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Project belongs to exactly one workspace. Test suites, cases and runs hang
// off projects; none of that is modeled here.
type Project struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Team is a workspace-scoped group of users that can hold project grants
// collectively.
type Team struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}
