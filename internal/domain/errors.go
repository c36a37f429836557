// Package domain contains the core business entities for ModFusion Accounts.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (storage, encoding, etc.).

var (
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken indicates another account already owns the normalized email.
	ErrEmailTaken = errors.New("an account with this email already exists")

	// ErrInvalidCredentials indicates authentication failed. Deliberately
	// does not reveal whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProtectedAccount indicates an attempt to delete or demote the
	// protected admin account.
	ErrProtectedAccount = errors.New("the protected admin account cannot be modified")

	// ErrNoSession indicates no account is currently signed in.
	ErrNoSession = errors.New("no active session")
)
