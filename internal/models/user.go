package models

import (
	"github.com/google/uuid"
)

// Role represents a federation member's role.
type Role string

const (
	RoleAthlete Role = "athlete"
	RoleCoach   Role = "coach"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAthlete, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r is a coach or an administrator.
func (r Role) IsStaff() bool {
	return r == RoleCoach || r == RoleAdmin
}

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
