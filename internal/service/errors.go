// Package service provides the session/auth façade for ModFusion Accounts.
package service

import "errors"

// Service errors.
var (
	// ErrForbidden indicates the operation requires an authenticated admin
	// session.
	ErrForbidden = errors.New("admin privileges required")
)

// User-facing failure messages returned in Result.Error. Validation and
// conflict failures never escape as raw errors across the service boundary;
// collaborators render these messages inline.
const (
	msgMissingCredentials = "email and password are required"
	msgMissingFields      = "all fields are required"
	msgInvalidEmail       = "please enter a valid email address"
	msgInvalidCredentials = "invalid credentials"
	msgPasswordTooShort   = "password must be at least 6 characters"
	msgPasswordMismatch   = "passwords do not match"
	msgInvalidName        = "names may only contain letters, spaces, hyphens and apostrophes"
	msgNoSession          = "no active session"
	msgEmailTaken         = "an account with this email already exists"
	msgProtectedDelete    = "the protected admin account cannot be deleted"
	msgProtectedDemote    = "the protected admin account cannot be demoted"
	msgProtectedEmail     = "the protected admin email cannot be changed"
	msgAccountNotFound    = "account not found"
	msgInternal           = "something went wrong, please try again"
)
