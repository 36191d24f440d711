package models

import "time"

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Country      *string   `db:"country" json:"country,omitempty"`
	RoleID       string    `db:"role_id" json:"role_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserWithRole is a user joined with its current role.
type UserWithRole struct {
	User
	RoleName string   `db:"role_name" json:"role"`
	RoleTier RoleTier `db:"role_tier" json:"-"`
}

// UserSummary is the reviewer-facing projection of a task owner.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
