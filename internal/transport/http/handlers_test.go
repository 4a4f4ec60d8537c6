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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/identity"
)

type noopAudit struct{}

func (noopAudit) Log(ctx context.Context, e audit.Event) {}

// memoryUserRepo is the in-memory identity.UserRepository behind handler tests.
type memoryUserRepo struct {
	users  map[int64]*identity.User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]*identity.User)}
}

func (m *memoryUserRepo) Create(user *identity.User) error {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserRepo) GetByID(id int64) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *memoryUserRepo) GetByEmail(email string) (*identity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *memoryUserRepo) Delete(id int64) error {
	delete(m.users, id)
	return nil
}

func newAuthHandler(t *testing.T) *Handler {
	t.Helper()
	hasher := identity.NewPasswordHasher(16*1024, 1, 1, 16, 32)
	return &Handler{
		identityService: identity.NewService(newMemoryUserRepo(), hasher, noopAudit{}),
		tokens:          newTestTokens(),
	}
}

func TestRegister_MalformedJSON(t *testing.T) {
	h := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()
	h.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_WeakPasswordReturnsBadRequest(t *testing.T) {
	h := newAuthHandler(t)

	body, _ := json.Marshal(RegisterRequest{Email: "alice@example.com", Password: "short"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_DuplicateReturnsConflict(t *testing.T) {
	h := newAuthHandler(t)

	body, _ := json.Marshal(RegisterRequest{Email: "alice@example.com", FullName: "Alice", Password: "correct horse battery staple"})
	first := httptest.NewRecorder()
	h.Register(first, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.Register(second, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestRegister_ResponseOmitsPasswordHash(t *testing.T) {
	h := newAuthHandler(t)

	body, _ := json.Marshal(RegisterRequest{Email: "alice@example.com", FullName: "Alice", Password: "correct horse battery staple"})
	w := httptest.NewRecorder()
	h.Register(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "password_hash")
	assert.Equal(t, "alice@example.com", resp["email"])
}

func TestLogin_Success(t *testing.T) {
	h := newAuthHandler(t)

	regBody, _ := json.Marshal(RegisterRequest{Email: "alice@example.com", Password: "correct horse battery staple"})
	reg := httptest.NewRecorder()
	h.Register(reg, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(regBody)))
	require.Equal(t, http.StatusCreated, reg.Code)

	loginBody, _ := json.Marshal(LoginRequest{Email: "alice@example.com", Password: "correct horse battery staple"})
	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(loginBody)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp["token_type"])

	userID, err := h.tokens.Verify(resp["access_token"])
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newAuthHandler(t)

	body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "whatever password 1234"})
	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_EmptyBody(t *testing.T) {
	h := newAuthHandler(t)

	w := httptest.NewRecorder()
	h.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(nil)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	h := &Handler{}

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCheckPermission_ResponseShape(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: true})}

	projectID := int64(7)
	body, _ := json.Marshal(CheckPermissionRequest{Permission: "project:view", ProjectID: &projectID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/authz/check", bytes.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	h.CheckPermission(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["allowed"])
}

func TestCheckPermission_MalformedPermissionDenies(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: true})}

	body, _ := json.Marshal(CheckPermissionRequest{Permission: "not-a-permission"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/authz/check", bytes.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), 1))
	w := httptest.NewRecorder()
	h.CheckPermission(w, req)

	// A malformed permission is an ordinary deny, not an error.
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp["allowed"])
}

func TestCheckPermission_Unauthenticated(t *testing.T) {
	h := &Handler{engine: newStubEngine(t, &stubAuthz{allow: true})}

	body, _ := json.Marshal(CheckPermissionRequest{Permission: "project:view"})
	w := httptest.NewRecorder()
	h.CheckPermission(w, httptest.NewRequest(http.MethodPost, "/api/v1/authz/check", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
