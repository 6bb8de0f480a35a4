package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input: a bad identifier, a missing
// required field, or an out-of-range enum value. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation targeting a nonexistent entity.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ReferentialIntegrityError reports a weak reference whose target is missing
// or in the wrong state, e.g. registering a field user against a team that is
// not approved.
type ReferentialIntegrityError struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// PersistenceError reports a storage medium failure (file write, database
// write). The triggering mutation is rolled back before this surfaces.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConnectionError reports an unreachable backend. It is only produced while
// opening a store and drives the startup fallback chain.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsReferentialIntegrity reports whether err is a ReferentialIntegrityError.
func IsReferentialIntegrity(err error) bool {
	var e *ReferentialIntegrityError
	return errors.As(err, &e)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool {
	var e *ConnectionError
	return errors.As(err, &e)
}
