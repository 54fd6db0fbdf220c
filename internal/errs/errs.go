// Package errs defines the error taxonomy shared by the client core.
// Every failure a user can hit maps to one of these types; nothing in
// the core is fatal, retrying the action is always a valid recovery.
package errs

import (
	"errors"
	"fmt"
)

// AuthKind is the user-facing category of an authentication failure.
type AuthKind string

const (
	AuthInvalidCredentials AuthKind = "invalid_credentials"
	AuthEmailUnconfirmed   AuthKind = "email_unconfirmed"
	AuthUsernameTaken      AuthKind = "username_taken"
	AuthEmailTaken         AuthKind = "email_taken"
	AuthRateLimited        AuthKind = "rate_limited"
	AuthUnknown            AuthKind = "unknown"
)

// AuthError is a sign-in/sign-up/sign-out failure with a category the
// UI can translate into a notification.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("auth: %s", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Auth wraps err under the given category.
func Auth(kind AuthKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// AuthKindOf extracts the category from err, or AuthUnknown with
// ok=false when err is not an AuthError.
func AuthKindOf(err error) (AuthKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return AuthUnknown, false
}

// ValidationError rejects user input before any state is mutated. The
// reason is human-readable and shown as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MediaAccessError covers capture-device failures: permission denied,
// no device, device busy.
type MediaAccessError struct {
	Err error
}

func (e *MediaAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media access denied: %v", e.Err)
	}
	return "media access denied"
}

func (e *MediaAccessError) Unwrap() error { return e.Err }

// PersistenceError wraps any external-store failure. Local state is
// rolled back to its pre-operation value before one is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err with the failing operation name.
func Persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}
