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
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/directory"
	"github.com/testforge/testforge/internal/identity"
	"github.com/testforge/testforge/internal/observability/logger"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService  *identity.Service
	directoryService *directory.Service
	engine           *authz.Engine
	grants           *authz.Grants
	tokens           *identity.TokenIssuer
	auditLogger      audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	directoryService *directory.Service,
	engine *authz.Engine,
	grants *authz.Grants,
	tokens *identity.TokenIssuer,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		identityService:  identityService,
		directoryService: directoryService,
		engine:           engine,
		grants:           grants,
		tokens:           tokens,
		auditLogger:      auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)

			// Authorization surface
			r.Post("/authz/check", h.CheckPermission)
			r.Get("/users/me/permissions", h.GetEffectivePermissions)

			// Provisioning. Any authenticated user may create a tenant and
			// becomes its owner.
			r.Post("/tenants", h.CreateTenant)

			r.Route("/tenants/{tenantID}", func(r chi.Router) {
				r.With(h.RequirePermission(authz.PermTenantCreateWorkspace, tenantScope)).
					Post("/workspaces", h.CreateWorkspace)
				r.With(h.RequirePermission(authz.PermTenantManageUsers, tenantScope)).
					Route("/users/{userID}/roles", func(r chi.Router) {
						r.Post("/", h.AssignTenantRole)
						r.Delete("/{role}", h.RevokeTenantRole)
					})
			})

			r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
				r.With(h.RequirePermission(authz.PermProjectCreate, workspaceScope)).
					Post("/projects", h.CreateProject)
				r.With(h.RequirePermission(authz.PermWorkspaceCreateTeam, workspaceScope)).
					Post("/teams", h.CreateTeam)
				r.With(h.RequirePermission(authz.PermWorkspaceManageUsers, workspaceScope)).
					Route("/users/{userID}/role", func(r chi.Router) {
						r.Put("/", h.AssignWorkspaceRole)
						r.Delete("/", h.RevokeWorkspaceRole)
					})
			})

			r.Route("/projects/{projectID}", func(r chi.Router) {
				r.Use(h.RequirePermission(authz.PermProjectManageAccess, projectScope))
				r.Put("/users/{userID}/role", h.AssignProjectRole)
				r.Delete("/users/{userID}/role", h.RevokeProjectRole)
				r.Put("/teams/{teamID}/role", h.AssignTeamProjectRole)
				r.Delete("/teams/{teamID}/role", h.RevokeTeamProjectRole)
			})

			r.Route("/teams/{teamID}/members", func(r chi.Router) {
				r.Post("/", h.AddTeamMember)
				r.Delete("/{userID}", h.RemoveTeamMember)
			})
		})
	})

	return r
}

func tenantScope(r *http.Request) authz.ScopeRef {
	if id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64); err == nil {
		return authz.ScopeRef{TenantID: &id}
	}
	return authz.ScopeRef{}
}

func workspaceScope(r *http.Request) authz.ScopeRef {
	if id, err := strconv.ParseInt(chi.URLParam(r, "workspaceID"), 10, 64); err == nil {
		return authz.ScopeRef{WorkspaceID: &id}
	}
	return authz.ScopeRef{}
}

func projectScope(r *http.Request) authz.ScopeRef {
	if id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64); err == nil {
		return authz.ScopeRef{ProjectID: &id}
	}
	return authz.ScopeRef{}
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "testforge",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			slog.ErrorContext(r.Context(), "failed to register user", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and returns a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.UserID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
	})
}

// GetCurrentUser returns the authenticated user
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func urlParamInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
