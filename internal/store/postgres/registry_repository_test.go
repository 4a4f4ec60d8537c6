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

package postgres

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/testforge/internal/authz"
)

func newMockRegistryRepo(t *testing.T) (*RegistryRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &RegistryRepository{pool: mock}, mock
}

func TestRegistryRepository_UpsertPermission(t *testing.T) {
	repo, mock := newMockRegistryRepo(t)

	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs("project", "view", "View project details").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.UpsertPermission(context.Background(), authz.Permission{Scope: "project", Action: "view"}, "View project details")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepository_RoleIDByName_NotFound(t *testing.T) {
	repo, mock := newMockRegistryRepo(t)

	mock.ExpectQuery(`SELECT id FROM roles`).
		WithArgs("No Such Role").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.RoleIDByName(context.Background(), "No Such Role")
	assert.ErrorIs(t, err, authz.ErrRoleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepository_AnyRoleHasPermission(t *testing.T) {
	repo, mock := newMockRegistryRepo(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs([]int64{1, 2}, "project", "view").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.AnyRoleHasPermission(context.Background(), []int64{1, 2}, authz.Permission{Scope: "project", Action: "view"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepository_AnyRoleHasPermission_NoRoles(t *testing.T) {
	repo, mock := newMockRegistryRepo(t)

	// No query must be issued for an empty role set.
	ok, err := repo.AnyRoleHasPermission(context.Background(), nil, authz.Permission{Scope: "project", Action: "view"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
