package identity

import (
	"context"
	"time"
)

// Store is the credential persistence boundary.
//
// All operations are atomic at the row level. SwapRefreshHash is the only
// conditional write and is what serializes concurrent refresh rotations.
type Store interface {
	// Create inserts a new credential. A taken name yields ConflictError{Field: "name"}.
	Create(ctx context.Context, c Credential) error

	// FindByID loads a credential; missing rows yield NotFoundError.
	FindByID(ctx context.Context, id string) (Credential, error)

	// FindByName loads a credential by its exact name; missing rows yield NotFoundError.
	FindByName(ctx context.Context, name string) (Credential, error)

	// Upsert fully replaces the credential keyed by id (created_at is preserved).
	Upsert(ctx context.Context, c Credential) error

	// SwapRefreshHash sets refresh_token_hash to next only if it currently equals expected.
	// Returns ErrNotActive when the row is missing or holds a different hash.
	SwapRefreshHash(ctx context.Context, id string, expected, next *string, now time.Time) error

	// DeleteByID removes the credential; NotFoundError if nothing was deleted.
	DeleteByID(ctx context.Context, id string) error
}
