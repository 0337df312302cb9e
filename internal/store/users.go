package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = "id, email, name, image, role, created_at"

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateUser inserts a user with role USER. Within the same transaction the user tries to
// claim the singleton admin_bootstrap row; only the claimant is promoted to ADMIN, so two
// concurrent first sign-ins can never both become admins.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return mapError(s.withTx(ctx, func(tx *sqlx.Tx) error {
		u.Role = models.RoleUser
		err := tx.GetContext(ctx, u, `
			INSERT INTO users (email, name, image, role) VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			u.Email, u.Name, u.Image, u.Role)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO admin_bootstrap (singleton, user_id) VALUES (TRUE, $1) ON CONFLICT (singleton) DO NOTHING",
			u.ID)
		if err != nil {
			return fmt.Errorf("failed to claim admin bootstrap: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "UPDATE users SET role = $1 WHERE id = $2", models.RoleAdmin, u.ID); err != nil {
			return fmt.Errorf("failed to promote user: %w", err)
		}
		u.Role = models.RoleAdmin
		return nil
	}))
}

// UpdateUserProfile refreshes the name and avatar reported by the identity provider
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, name, image string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET name = $1, image = $2 WHERE id = $3", name, image, id)
	return err
}
