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

package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/testforge/internal/audit"
	"github.com/testforge/testforge/internal/identity"
)

// MockUserRepository is an in-memory identity.UserRepository.
type MockUserRepository struct {
	users  map[int64]*identity.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*identity.User)}
}

func (m *MockUserRepository) Create(user *identity.User) error {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(id int64) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(email string) (*identity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *MockUserRepository) Delete(id int64) error {
	if _, ok := m.users[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

type MockAuditLogger struct {
	events []audit.Event
}

func (m *MockAuditLogger) Log(ctx context.Context, e audit.Event) {
	m.events = append(m.events, e)
}

func newTestService() (*identity.Service, *MockUserRepository, *MockAuditLogger) {
	repo := NewMockUserRepository()
	auditLogger := &MockAuditLogger{}
	return identity.NewService(repo, newTestHasher(), auditLogger), repo, auditLogger
}

func TestRegister_Success(t *testing.T) {
	svc, _, auditLogger := newTestService()

	user, err := svc.Register(context.Background(), "Alice@Example.COM", "Alice Smith", "correct horse battery staple")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email, "email must be normalized")
	assert.NotEqual(t, "correct horse battery staple", user.PasswordHash)

	require.Len(t, auditLogger.events, 1)
	assert.Equal(t, audit.TypeUserCreated, auditLogger.events[0].Type)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice@example.com", "Alice", "short")
	assert.ErrorIs(t, err, identity.ErrWeakPassword)
	assert.Empty(t, repo.users)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "correct horse battery staple")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE@example.com", "Other Alice", "another long password here")
	assert.ErrorIs(t, err, identity.ErrUserAlreadyExists)
}

func TestRegister_InvalidEmail(t *testing.T) {
	svc, _, _ := newTestService()

	for _, email := range []string{"", "no-at-sign", "   "} {
		_, err := svc.Register(context.Background(), email, "Alice", "correct horse battery staple")
		assert.Error(t, err, "email=%q", email)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	svc, _, auditLogger := newTestService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "Alice", "correct horse battery staple")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice@example.com", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	last := auditLogger.events[len(auditLogger.events)-1]
	assert.Equal(t, audit.TypeLoginSuccess, last.Type)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc, _, auditLogger := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "correct horse battery staple")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong password entirely")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	last := auditLogger.events[len(auditLogger.events)-1]
	assert.Equal(t, audit.TypeLoginFailed, last.Type)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Authenticate(context.Background(), "nobody@example.com", "whatever password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}
