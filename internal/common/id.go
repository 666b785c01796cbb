package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique ingestion run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewLockOwnerID generates a unique advisory-lock owner ID
// Format: <hostname-less uuid>; the lock table stores it opaquely
func NewLockOwnerID() string {
	return uuid.New().String()
}

// NewEventID generates a unique feedback event ID with the "evt_" prefix
func NewEventID() string {
	return "evt_" + uuid.New().String()
}
