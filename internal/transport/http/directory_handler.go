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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/directory"
	"github.com/testforge/testforge/internal/observability/logger"
)

type createRequest struct {
	Name string `json:"name"`
}

// CreateTenant creates a tenant owned by the caller
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserID(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := h.directoryService.CreateTenant(r.Context(), req.Name, userID)
	if err != nil {
		if errors.Is(err, authz.ErrConfiguration) {
			slog.ErrorContext(r.Context(), "tenant creation rejected, role registry not seeded", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "system roles not provisioned")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create tenant", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	respondJSON(w, http.StatusCreated, tenant)
}

// CreateWorkspace creates a workspace inside a tenant
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserID(r.Context())

	tenantID, err := urlParamInt64(r, "tenantID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workspace, err := h.directoryService.CreateWorkspace(r.Context(), tenantID, req.Name, userID)
	if err != nil {
		if errors.Is(err, directory.ErrTenantNotFound) {
			respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create workspace", logger.Error(err), logger.TenantID(tenantID))
		respondError(w, http.StatusInternalServerError, "failed to create workspace")
		return
	}

	respondJSON(w, http.StatusCreated, workspace)
}

// CreateProject creates a project inside a workspace
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserID(r.Context())

	workspaceID, err := urlParamInt64(r, "workspaceID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workspace id")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.directoryService.CreateProject(r.Context(), workspaceID, req.Name, userID)
	if err != nil {
		if errors.Is(err, directory.ErrWorkspaceNotFound) {
			respondError(w, http.StatusNotFound, "workspace not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create project", logger.Error(err), logger.WorkspaceID(workspaceID))
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

// CreateTeam creates a team inside a workspace
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserID(r.Context())

	workspaceID, err := urlParamInt64(r, "workspaceID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workspace id")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	team, err := h.directoryService.CreateTeam(r.Context(), workspaceID, req.Name, userID)
	if err != nil {
		if errors.Is(err, directory.ErrWorkspaceNotFound) {
			respondError(w, http.StatusNotFound, "workspace not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to create team", logger.Error(err), logger.WorkspaceID(workspaceID))
		respondError(w, http.StatusInternalServerError, "failed to create team")
		return
	}

	respondJSON(w, http.StatusCreated, team)
}
