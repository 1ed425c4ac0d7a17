// README: In-memory store for users, requests and the vendor directory (dev and tests).
package memory

import (
	"sync"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// Store keeps everything in maps guarded by mu. Updates to one request or one
// user are serialized with a per-id lock held across the callback, while mu is
// only held for reads and the final commit. Every user write bumps that user's
// version so a request unit of work can tell at commit whether the users it
// read are still current.
type Store struct {
	mu       sync.RWMutex
	users    map[types.ID]*users.User
	requests map[types.ID]*request.ServiceRequest
	versions map[types.ID]uint64

	requestLocks keyedMutex
	userLocks    keyedMutex
}

var (
	_ users.Store       = (*UserStore)(nil)
	_ request.Store     = (*RequestStore)(nil)
	_ routing.Directory = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    map[types.ID]*users.User{},
		requests: map[types.ID]*request.ServiceRequest{},
		versions: map[types.ID]uint64{},
	}
}

// touch bumps the version of every non-nil id. Callers hold mu.
func (s *Store) touch(ids ...*types.ID) {
	for _, id := range ids {
		if id != nil {
			s.versions[*id]++
		}
	}
}

// UserStore is the users.Store view of the shared state.
type UserStore struct{ *Store }

// RequestStore is the request.Store view of the shared state.
type RequestStore struct{ *Store }

func (s *Store) Users() *UserStore { return &UserStore{s} }

func (s *Store) Requests() *RequestStore { return &RequestStore{s} }

type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(id types.ID) func() {
	m, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
