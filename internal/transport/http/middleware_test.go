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
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/testforge/internal/authz"
	"github.com/testforge/testforge/internal/identity"
)

// stubAuthz backs an authz.Engine for handler tests: the user holds role 1
// on every workspace and project plus any listed tenant grants, and
// AnyRoleHasPermission answers from the allow flag.
type stubAuthz struct {
	allow        bool
	err          error
	tenantGrants []authz.TenantGrant
}

func (s *stubAuthz) TenantGrants(ctx context.Context, userID int64) ([]authz.TenantGrant, error) {
	return s.tenantGrants, s.err
}

func (s *stubAuthz) WorkspaceRoleIDs(ctx context.Context, userID, workspaceID int64) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []int64{1}, nil
}

func (s *stubAuthz) ProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []int64{1}, nil
}

func (s *stubAuthz) TeamProjectRoleIDs(ctx context.Context, userID, projectID int64) ([]int64, error) {
	return nil, s.err
}

func (s *stubAuthz) AnyRoleHasPermission(ctx context.Context, roleIDs []int64, p authz.Permission) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.allow && len(roleIDs) > 0, nil
}

func (s *stubAuthz) RoleIDByName(ctx context.Context, name string) (int64, error) {
	return 1, nil
}

func (s *stubAuthz) ResolveTenant(ctx context.Context, ref authz.ScopeRef) (*int64, *int64, error) {
	return ref.TenantID, ref.WorkspaceID, s.err
}

func (s *stubAuthz) SystemPermissions(ctx context.Context, userID int64) ([]string, error) {
	return nil, s.err
}

func (s *stubAuthz) WorkspacePermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	return nil, s.err
}

func (s *stubAuthz) ProjectPermissions(ctx context.Context, userID int64) (map[int64][]string, error) {
	return nil, s.err
}

func newStubEngine(t *testing.T, stub *stubAuthz) *authz.Engine {
	t.Helper()
	catalog, err := authz.NewCatalog(authz.DefaultRoles)
	require.NoError(t, err)
	return authz.NewEngine(catalog, stub, stub, stub, stub)
}

func newTestTokens() *identity.TokenIssuer {
	return identity.NewTokenIssuer("handler-test-secret", time.Hour)
}

func bearerRequest(t *testing.T, tokens *identity.TokenIssuer, userID int64) *http.Request {
	t.Helper()
	token, err := tokens.Issue(userID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	h := &Handler{tokens: newTestTokens()}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	w := httptest.NewRecorder()
	h.AuthMiddleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	h := &Handler{tokens: newTestTokens()}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	h.AuthMiddleware(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokens := newTestTokens()
	h := &Handler{tokens: tokens}

	var gotUserID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r.Context())
		require.True(t, ok)
		gotUserID = id
	})

	w := httptest.NewRecorder()
	h.AuthMiddleware(next).ServeHTTP(w, bearerRequest(t, tokens, 42))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), gotUserID)
}

func TestRequirePermission_Allowed(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: true})}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	projectID := int64(7)
	mw := h.RequirePermission(authz.PermProjectView, func(r *http.Request) authz.ScopeRef {
		return authz.ScopeRef{ProjectID: &projectID}
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission_Denied(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: false})}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when permission is denied")
	})

	projectID := int64(7)
	mw := h.RequirePermission(authz.PermProjectView, func(r *http.Request) authz.ScopeRef {
		return authz.ScopeRef{ProjectID: &projectID}
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")
	// The denial carries no hint of what the user does hold.
	assert.NotContains(t, w.Body.String(), authz.PermProjectView)
}

func TestRequirePermission_TenantScopeIsolation(t *testing.T) {
	stub := &stubAuthz{allow: true, tenantGrants: []authz.TenantGrant{{RoleID: 1, TenantID: 1}}}
	h := &Handler{engine: newStubEngine(t, stub)}

	router := chi.NewRouter()
	router.With(h.RequirePermission(authz.PermTenantManageUsers, tenantScope)).
		Post("/tenants/{tenantID}/users/{userID}/roles", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	// Admin of tenant 1 acting inside tenant 1.
	req := httptest.NewRequest(http.MethodPost, "/tenants/1/users/7/roles", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The same grant must not reach the tenant named in another URL.
	req = httptest.NewRequest(http.MethodPost, "/tenants/2/users/7/roles", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")
}

func TestRequirePermission_Unauthenticated(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: true})}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an authenticated user")
	})

	w := httptest.NewRecorder()
	h.RequirePermission(authz.PermProjectView, nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermission_EngineFailureIsServerError(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{err: errors.New("pool exhausted")})}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the check errors")
	})

	projectID := int64(7)
	mw := h.RequirePermission(authz.PermProjectView, func(r *http.Request) authz.ScopeRef {
		return authz.ScopeRef{ProjectID: &projectID}
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	mw(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(rl)(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(rl)(next)

	for _, addr := range []string{"203.0.113.9:1234", "203.0.113.10:1234"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "first request from %s", addr)
	}
}
