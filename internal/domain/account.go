// Package domain contains the core business entities for ModFusion Accounts.
// These are pure Go structs with no external dependencies, representing
// the account directory and session concepts.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization tier of an account.
type Role string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"

	// RoleAdmin grants access to the user-management operations.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account represents one registered user in the directory.
//
// The JSON field names match the persisted record layout and must not change:
// the directory record is a JSON array of these objects.
type Account struct {
	// ID is the opaque unique identifier, generated at creation, immutable.
	ID string `json:"id"`

	// Email is unique across the directory after normalization
	// (trimmed, lower-cased).
	Email string `json:"email"`

	// FirstName is the trimmed given name.
	FirstName string `json:"firstName"`

	// LastName is the trimmed family name.
	LastName string `json:"lastName"`

	// Password is stored verbatim as submitted. This is a documented
	// weakness of the system, preserved deliberately: there is no hashing.
	Password string `json:"password"`

	// Role is the authorization tier. Defaults to RoleUser at creation.
	Role Role `json:"role"`

	// Avatar is an optional image reference (URL or data URI).
	Avatar string `json:"avatar,omitempty"`

	// CreatedAt is set once at creation and never mutated.
	CreatedAt time.Time `json:"createdAt"`

	// LastLogin is refreshed on every successful authentication.
	// Nil until the first login.
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// NewAccount creates an Account with a fresh ID and default role.
// The email must already be normalized by the caller.
func NewAccount(email, firstName, lastName, password string) *Account {
	return &Account{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Password:  password,
		Role:      RoleUser,
		CreatedAt: time.Now().UTC(),
	}
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// FullName returns the display name.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate the directory through a returned pointer.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}
