package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/role-approval-api/internal/models"
)

const defaultRoleCacheSize = 32

// RoleRepository reads role reference data through an in-process LRU cache.
type RoleRepository struct {
	db     *sqlx.DB
	byName *lru.Cache[string, models.Role]
	byID   *lru.Cache[string, models.Role]
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) (*RoleRepository, error) {
	byName, err := lru.New[string, models.Role](defaultRoleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init role cache: %w", err)
	}
	byID, err := lru.New[string, models.Role](defaultRoleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init role cache: %w", err)
	}
	return &RoleRepository{db: db, byName: byName, byID: byID}, nil
}

// FindByName resolves a role by its unique name.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	if role, ok := r.byName.Get(name); ok {
		return &role, nil
	}
	const query = `SELECT id, name, tier, created_at FROM roles WHERE name = $1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, name); err != nil {
		return nil, err
	}
	r.remember(role)
	return &role, nil
}

// FindByID resolves a role by identifier.
func (r *RoleRepository) FindByID(ctx context.Context, id string) (*models.Role, error) {
	if role, ok := r.byID.Get(id); ok {
		return &role, nil
	}
	const query = `SELECT id, name, tier, created_at FROM roles WHERE id = $1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		return nil, err
	}
	r.remember(role)
	return &role, nil
}

// FindBaseline returns the role every new user starts with.
func (r *RoleRepository) FindBaseline(ctx context.Context) (*models.Role, error) {
	const query = `SELECT id, name, tier, created_at FROM roles WHERE tier = $1 ORDER BY created_at ASC LIMIT 1`
	var role models.Role
	if err := r.db.GetContext(ctx, &role, query, models.RoleTierBaseline); err != nil {
		return nil, err
	}
	r.remember(role)
	return &role, nil
}

// List returns all roles ordered by tier.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	const query = `SELECT id, name, tier, created_at FROM roles ORDER BY tier ASC, name ASC`
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// Upsert inserts a role or updates the tier of an existing one.
func (r *RoleRepository) Upsert(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO roles (id, name, tier, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name) DO UPDATE SET tier = EXCLUDED.tier
	RETURNING id, name, tier, created_at`
	if err := r.db.GetContext(ctx, role, query, role.ID, role.Name, role.Tier, role.CreatedAt); err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}
	r.byName.Remove(role.Name)
	r.byID.Remove(role.ID)
	return nil
}

func (r *RoleRepository) remember(role models.Role) {
	r.byName.Add(role.Name, role)
	r.byID.Add(role.ID, role)
}
