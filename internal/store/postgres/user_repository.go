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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/testforge/testforge/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	pool Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{pool: db.pool}
}

// Create creates a new user identity
func (r *UserRepository) Create(user *identity.User) error {
	ctx := context.Background()
	user.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, user.Email, user.FullName, user.PasswordHash, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*identity.User, error) {
	return r.get(`
		SELECT id, email, full_name, password_hash, created_at, deleted_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*identity.User, error) {
	return r.get(`
		SELECT id, email, full_name, password_hash, created_at, deleted_at
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email)
}

// Delete soft-deletes a user
func (r *UserRepository) Delete(id int64) error {
	result, err := r.pool.Exec(context.Background(), `
		UPDATE users SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) get(query string, arg any) (*identity.User, error) {
	var user identity.User
	err := r.pool.QueryRow(context.Background(), query, arg).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.CreatedAt, &user.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
