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
	"log/slog"
	"net/http"

	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/observability/logger"
)

// CheckPermissionRequest asks whether the caller holds a permission, optionally
// narrowed to a workspace or project.
type CheckPermissionRequest struct {
	Permission  string `json:"permission"`
	TenantID    *int64 `json:"tenant_id,omitempty"`
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
	ProjectID   *int64 `json:"project_id,omitempty"`
}

// CheckPermission evaluates a permission check for the authenticated user
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CheckPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	allowed, err := h.engine.HasPermission(r.Context(), userID, req.Permission, authz.ScopeRef{
		TenantID:    req.TenantID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "permission check failed",
			logger.Error(err),
			logger.UserID(userID),
			logger.Permission(req.Permission),
		)
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// GetEffectivePermissions returns the caller's permissions grouped by scope
func (h *Handler) GetEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	perms, err := h.engine.EffectivePermissions(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build effective permissions",
			logger.Error(err),
			logger.UserID(userID),
		)
		respondError(w, http.StatusInternalServerError, "failed to get permissions")
		return
	}

	respondJSON(w, http.StatusOK, perms)
}
