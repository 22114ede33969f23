package repository

import (
	"context"

	"github.com/musiccy/music-svc/internal/domain"
)

// UsersRepository provides persistence helpers for user accounts.
type UsersRepository struct {
	db Querier
}

const userColumns = `
    uuid,
    full_name,
    email,
    verified,
    active,
    role,
    created_at,
    updated_at
`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	UUID     string
	FullName string
	Email    string
	Role     domain.Role
}

// Create inserts a new user row. A duplicate email maps to ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := `
        INSERT INTO users (uuid, full_name, email, role)
        VALUES ($1,$2,$3,$4)
        RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, params.UUID, params.FullName, params.Email, params.Role))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return user, nil
}

// GetByUUID fetches a user by id.
func (r *UsersRepository) GetByUUID(ctx context.Context, uuid string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, uuid))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return user, nil
}

// GetByEmail fetches a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return user, nil
}

// UpdateFullName replaces the user's display name.
func (r *UsersRepository) UpdateFullName(ctx context.Context, uuid, fullName string) (domain.User, error) {
	query := `
        UPDATE users SET full_name = $2, updated_at = now()
        WHERE uuid = $1
        RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, uuid, fullName))
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return user, nil
}

// SetVerified flips the user's email verification flag.
func (r *UsersRepository) SetVerified(ctx context.Context, uuid string, verified bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET verified = $2, updated_at = now() WHERE uuid = $1`, uuid, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the account; the row stays so existing ratings
// keep their author.
func (r *UsersRepository) Deactivate(ctx context.Context, uuid string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET active = FALSE, updated_at = now() WHERE uuid = $1`, uuid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row songScanner) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.UUID,
		&user.FullName,
		&user.Email,
		&user.Verified,
		&user.Active,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
