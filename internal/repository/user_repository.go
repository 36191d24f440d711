package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/role-approval-api/internal/models"
)

// ErrDuplicateEmail is returned when the users.email unique constraint is violated.
var ErrDuplicateEmail = errors.New("duplicate email")

const uniqueViolation = "23505"

const userWithRoleSelect = `SELECT u.id, u.email, u.password_hash, u.name, u.country, u.role_id, u.created_at, u.updated_at,
       r.name AS role_name, r.tier AS role_tier
	FROM users u JOIN roles r ON r.id = u.role_id`

// UserRepository provides database access for user management.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user with its role by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.UserWithRole, error) {
	query := userWithRoleSelect + ` WHERE u.email = $1 LIMIT 1`
	var user models.UserWithRole
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user with its role by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.UserWithRole, error) {
	query := userWithRoleSelect + ` WHERE u.id = $1 LIMIT 1`
	var user models.UserWithRole
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. A duplicate email yields ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, name, country, role_id, created_at, updated_at)
	VALUES (:id, :email, :password_hash, :name, :country, :role_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateRoleWithTx reassigns the user's role inside an existing transaction.
func (r *UserRepository) UpdateRoleWithTx(ctx context.Context, tx *sqlx.Tx, userID, roleID string) error {
	const query = `UPDATE users SET role_id = $1, updated_at = $2 WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, roleID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check user role rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
