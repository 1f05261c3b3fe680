// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is a position in the ordinal role hierarchy.
//
// Roles are totally ordered: public < user < ulama < admin. Code that needs
// "at least as privileged as" must compare ranks (see auth.Authorize), never
// compare role strings for equality.
type Role string

const (
	RolePublic Role = "public"
	RoleUser   Role = "user"
	RoleUlama  Role = "ulama"
	RoleAdmin  Role = "admin"
)

// Rank returns the ordinal of the role, or -1 for a value outside the
// hierarchy. An unknown role therefore satisfies no requirement.
func (r Role) Rank() int {
	switch r {
	case RolePublic:
		return 0
	case RoleUser:
		return 1
	case RoleUlama:
		return 2
	case RoleAdmin:
		return 3
	default:
		return -1
	}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RolePublic, RoleUser, RoleUlama, RoleAdmin}
}

// User represents a registered account.
//
// PasswordHash is opaque to the core: it is produced and checked only by
// auth.PasswordService. GitHubID is zero for accounts created with a
// username/password registration.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"`
	Role         Role      `json:"role"`
	Approved     bool      `json:"approved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Actor returns the identity triple the core consumes for authorization.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role, Approved: u.Approved}
}

// Actor is the already-authenticated caller of a core operation.
//
// Every service method that reads per-user data or mutates state takes an
// Actor explicitly. The core never looks up "who is logged in" from ambient
// state.
type Actor struct {
	ID       string `json:"id"`
	Role     Role   `json:"role"`
	Approved bool   `json:"approved"`
}

// Anonymous is the actor used for requests without a session. It holds the
// public role and is not an account, so there is nothing to approve.
func Anonymous() Actor {
	return Actor{Role: RolePublic, Approved: true}
}

// IsAnonymous reports whether the actor has no backing account.
func (a Actor) IsAnonymous() bool {
	return a.ID == ""
}
