package domain

import (
	"regexp"
	"strings"
)

// MinPasswordLength is the minimum accepted password length at registration.
const MinPasswordLength = 6

var (
	// emailPattern is the syntactic check applied before any store access.
	// It mirrors the permissive single-page-app check: something@something.tld.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// namePattern accepts letters (including accented), spaces, hyphens
	// and apostrophes.
	namePattern = regexp.MustCompile(`^[\p{L}](?:[\p{L} '-]*[\p{L}])?$`)
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// All uniqueness checks and credential lookups operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address passes the syntactic email check.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(NormalizeEmail(email))
}

// ValidName reports whether the trimmed name contains only permitted
// name characters and is non-empty.
func ValidName(name string) bool {
	return namePattern.MatchString(strings.TrimSpace(name))
}

// ValidPassword reports whether the password meets the minimum length.
func ValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}
