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

	"github.com/go-chi/chi/v5"

	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/observability/logger"
)

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) writeGrantError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, authz.ErrConfiguration):
		slog.ErrorContext(r.Context(), "grant rejected, unknown role", logger.Error(err))
		respondError(w, http.StatusBadRequest, "unknown role")
	case errors.Is(err, authz.ErrGrantNotFound):
		respondError(w, http.StatusNotFound, "grant not found")
	default:
		slog.ErrorContext(r.Context(), "grant operation failed", logger.Error(err), logger.Operation(action))
		respondError(w, http.StatusInternalServerError, "grant operation failed")
	}
}

// AssignTenantRole grants a tenant-level role to a user
func (h *Handler) AssignTenantRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	tenantID, err := urlParamInt64(r, "tenantID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.grants.AssignTenantRole(r.Context(), userID, req.Role, tenantID, actorID); err != nil {
		h.writeGrantError(w, r, err, "assign_tenant_role")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "granted"})
}

// RevokeTenantRole removes a tenant-level role from a user
func (h *Handler) RevokeTenantRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	tenantID, err := urlParamInt64(r, "tenantID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	role := chi.URLParam(r, "role")

	if err := h.grants.RevokeTenantRole(r.Context(), userID, role, tenantID, actorID); err != nil {
		h.writeGrantError(w, r, err, "revoke_tenant_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// AssignWorkspaceRole sets a user's role on a workspace
func (h *Handler) AssignWorkspaceRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	workspaceID, err := urlParamInt64(r, "workspaceID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workspace id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.grants.AssignWorkspaceRole(r.Context(), userID, workspaceID, req.Role, actorID); err != nil {
		h.writeGrantError(w, r, err, "assign_workspace_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// RevokeWorkspaceRole removes a user's workspace role
func (h *Handler) RevokeWorkspaceRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	workspaceID, err := urlParamInt64(r, "workspaceID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid workspace id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.grants.RevokeWorkspaceRole(r.Context(), userID, workspaceID, actorID); err != nil {
		h.writeGrantError(w, r, err, "revoke_workspace_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// AssignProjectRole sets a user's role on a project
func (h *Handler) AssignProjectRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	projectID, err := urlParamInt64(r, "projectID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.grants.AssignProjectRole(r.Context(), userID, projectID, req.Role, actorID); err != nil {
		h.writeGrantError(w, r, err, "assign_project_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// RevokeProjectRole removes a user's direct project role
func (h *Handler) RevokeProjectRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	projectID, err := urlParamInt64(r, "projectID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.grants.RevokeProjectRole(r.Context(), userID, projectID, actorID); err != nil {
		h.writeGrantError(w, r, err, "revoke_project_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// AssignTeamProjectRole sets a team's role on a project
func (h *Handler) AssignTeamProjectRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	projectID, err := urlParamInt64(r, "projectID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	teamID, err := urlParamInt64(r, "teamID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.grants.AssignTeamProjectRole(r.Context(), teamID, projectID, req.Role, actorID); err != nil {
		h.writeGrantError(w, r, err, "assign_team_project_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

// RevokeTeamProjectRole removes a team's project role
func (h *Handler) RevokeTeamProjectRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	projectID, err := urlParamInt64(r, "projectID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	teamID, err := urlParamInt64(r, "teamID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	if err := h.grants.RevokeTeamProjectRole(r.Context(), teamID, projectID, actorID); err != nil {
		h.writeGrantError(w, r, err, "revoke_team_project_role")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type teamMemberRequest struct {
	UserID int64 `json:"user_id"`
}

// requireTeamWorkspacePermission resolves the team's workspace and checks the
// caller holds the permission there. Team membership is managed by whoever
// can manage users in the owning workspace.
func (h *Handler) requireTeamWorkspacePermission(w http.ResponseWriter, r *http.Request, teamID int64) bool {
	actorID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return false
	}

	team, err := h.directoryService.GetTeam(r.Context(), teamID)
	if err != nil {
		respondError(w, http.StatusNotFound, "team not found")
		return false
	}

	allowed, err := h.engine.HasPermission(r.Context(), actorID, authz.PermWorkspaceManageUsers, authz.ScopeRef{
		WorkspaceID: &team.WorkspaceID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "authorization check failed", logger.Error(err), logger.TeamID(teamID))
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return false
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "permission denied")
		return false
	}
	return true
}

// AddTeamMember adds a user to a team
func (h *Handler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	teamID, err := urlParamInt64(r, "teamID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	if !h.requireTeamWorkspacePermission(w, r, teamID) {
		return
	}

	var req teamMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.grants.AddTeamMember(r.Context(), req.UserID, teamID, actorID); err != nil {
		h.writeGrantError(w, r, err, "add_team_member")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// RemoveTeamMember removes a user from a team
func (h *Handler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	actorID, _ := GetUserID(r.Context())

	teamID, err := urlParamInt64(r, "teamID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid team id")
		return
	}
	userID, err := urlParamInt64(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if !h.requireTeamWorkspacePermission(w, r, teamID) {
		return
	}

	if err := h.grants.RemoveTeamMember(r.Context(), userID, teamID, actorID); err != nil {
		h.writeGrantError(w, r, err, "remove_team_member")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
