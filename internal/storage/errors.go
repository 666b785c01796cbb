// Package storage defines the error contract shared by every store
// implementation. Callers branch on these sentinels, never on driver
// error strings.
package storage

import "errors"

var (
	// ErrNotFound is returned when a row addressed by key does not exist
	ErrNotFound = errors.New("not found")

	// ErrMissingIdentity is returned when company evidence carries neither
	// a website domain nor a normalized name
	ErrMissingIdentity = errors.New("company evidence has no identity key")

	// ErrUniqueConstraint is returned when an insert or update violates a
	// unique index, e.g. two companies claiming the same ATS tenant
	ErrUniqueConstraint = errors.New("unique constraint violation")
)
