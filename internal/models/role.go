package models

import "time"

// RoleTier orders roles by privilege.
type RoleTier int

const (
	RoleTierBaseline   RoleTier = 0
	RoleTierPrivileged RoleTier = 1
	RoleTierSuperAdmin RoleTier = 2
)

// Canonical role names seeded into the roles table.
const (
	RoleGeneralPublic  = "general_public"
	RoleEpidemiologist = "epidemiologist"
	RoleMedicalOfficer = "medical officer"
	RoleAdmin          = "admin"
	RoleSuperAdmin     = "superadmin"
)

// Role is immutable reference data looked up by name.
type Role struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Tier      RoleTier  `db:"tier" json:"tier"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsBaseline reports whether the role is the default role every user starts with.
func (r Role) IsBaseline() bool {
	return r.Tier == RoleTierBaseline
}

// RequiresEvidence reports whether requesting this role needs supporting documents.
func (r Role) RequiresEvidence() bool {
	return r.Tier == RoleTierPrivileged
}

// SeedRoles lists the reference roles and their tiers.
var SeedRoles = []Role{
	{Name: RoleGeneralPublic, Tier: RoleTierBaseline},
	{Name: RoleEpidemiologist, Tier: RoleTierPrivileged},
	{Name: RoleMedicalOfficer, Tier: RoleTierPrivileged},
	{Name: RoleAdmin, Tier: RoleTierPrivileged},
	{Name: RoleSuperAdmin, Tier: RoleTierSuperAdmin},
}
