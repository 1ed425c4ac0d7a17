// README: Persistence contract for service requests and the users they touch.
package request

import (
	"context"
	"errors"

	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// ErrSkipWrite, returned from an Update callback, ends the unit of work
// without writing anything. Update then returns the unchanged request.
var ErrSkipWrite = errors.New("skip write")

// Tx is the user side of a unit of work. A user read stays valid until the
// unit ends: concurrent changes to that user either wait for the unit or
// force it to rerun. Activity writes are applied only if the unit commits.
type Tx interface {
	User(ctx context.Context, id types.ID) (*users.User, error)
	SetActivity(ctx context.Context, id types.ID, a users.Activity) error
}

type Store interface {
	// Create runs fn, then inserts r together with fn's activity writes. fn
	// may run more than once; r is reset to its initial state before each run.
	Create(ctx context.Context, r *ServiceRequest, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id types.ID) (*ServiceRequest, error)
	// User reads committed user state outside any unit of work.
	User(ctx context.Context, id types.ID) (*users.User, error)
	ListOpenByIntendedVendor(ctx context.Context, vendorID types.ID) ([]*ServiceRequest, error)
	ListByRequester(ctx context.Context, userID types.ID) ([]*ServiceRequest, error)
	// Update locks the request, hands fn a private copy and persists the copy
	// and fn's activity writes atomically when fn returns nil. Calls for the
	// same id are linearizable. fn may run more than once and must only
	// mutate the copy it is given.
	Update(ctx context.Context, id types.ID, fn func(ctx context.Context, tx Tx, r *ServiceRequest) error) (*ServiceRequest, error)
}
