// Package store persists the routing table. Backends share one contract:
// Load never fails on a corrupt blob (it degrades to an empty table) and
// Save overwrites the previous state last-writer-wins.
package store

import (
	"context"

	"github.com/m3rciful/relaybot/internal/routing"
)

// UpdateFunc mutates one user's entry. A zero Entry is passed when the user
// has no row yet.
type UpdateFunc func(routing.Entry) routing.Entry

// Store is the persistence contract for routing configuration.
type Store interface {
	// Load returns the full routing table. A missing or unreadable store
	// yields an empty table, never an error visible to users.
	Load(ctx context.Context) (routing.Table, error)
	// Save persists the full table, replacing whatever was stored before.
	Save(ctx context.Context, t routing.Table) error
	// Update applies fn to a single user's entry and persists the result.
	// Backends serialize concurrent updates for the same user so that a
	// read-modify-write never loses a concurrent edit.
	Update(ctx context.Context, userID string, fn UpdateFunc) (routing.Entry, error)
}
