// Package id provides UUIDv7 generation for orders, stages, movements and every other row.
package id

import (
	"github.com/google/uuid"
)

type ID = uuid.UUID

// New generates a new time-ordered UUIDv7.
// Stage and history rows sort by insertion order without an extra index.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
