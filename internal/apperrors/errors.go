// Package apperrors defines the sentinel error values shared across the core
// services. Callers classify failures with errors.Is; the HTTP layer maps each
// kind to a status code.
package apperrors

import "errors"

var (
	// ErrValidation covers malformed input: bad channel paths, missing
	// disambiguating parameters, out-of-range pagination values.
	ErrValidation = errors.New("validation failed")

	// ErrConflict covers illegal state transitions: creating a subfolder under
	// a folder that already holds logs, favoriting the same folder twice.
	ErrConflict = errors.New("conflict")

	// ErrAuth covers cross-tenant access attempts, e.g. deleting a log that
	// belongs to another organization.
	ErrAuth = errors.New("not authorized")

	// ErrNotFound covers references to folders, rules, or organizations that
	// do not exist.
	ErrNotFound = errors.New("not found")
)
