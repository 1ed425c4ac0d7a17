// README: Persistence contract for users.
package users

import (
	"context"

	"quickfix/internal/types"
)

// Store persists users. Implementations derive Workers and Coverage for
// vendors from the workers whose VendorID points at them; Update callbacks
// may only change authoritative fields.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	// Update applies fn to a private copy of the user and persists it when fn
	// returns nil. Calls for the same id are serialized.
	Update(ctx context.Context, id types.ID, fn func(u *User) error) (*User, error)
	// Delete removes the user. It returns ErrConflict while the user is party
	// to an OPEN or ASSIGNED request, and otherwise clears the user's id from
	// COMPLETED requests.
	Delete(ctx context.Context, id types.ID) error
}
