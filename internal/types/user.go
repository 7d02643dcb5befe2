package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of roles a user can hold. Authorization checks
// compare against these variants, never against free-form strings.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleResearcher     Role = "researcher"
	RoleDepartmentHead Role = "department_head"
	RoleFacultyMember  Role = "faculty_member"
)

// ParseRole maps a stored role string onto the enumeration. Unknown values
// report ok=false so callers never treat an arbitrary string as a role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleProjectManager, RoleResearcher, RoleDepartmentHead, RoleFacultyMember:
		return Role(s), true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// User is the credential store record. PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName is what the session carries for page chrome.
func (u *User) DisplayName() string {
	if u.Firstname == "" && u.Lastname == "" {
		return u.Username
	}
	return u.Firstname + " " + u.Lastname
}
