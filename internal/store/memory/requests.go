// README: request.Store on maps with per-request serialization.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// maxAttempts bounds how often a unit of work is replayed after the users it
// read changed underneath it.
const maxAttempts = 8

var errStaleRead = errors.New("users changed during unit of work")

// tx records the version of every user it hands out and buffers activity
// writes until commit.
type tx struct {
	s        *Store
	read     map[types.ID]uint64
	activity map[types.ID]users.Activity
}

func (t *tx) User(ctx context.Context, id types.ID) (*users.User, error) {
	t.s.mu.RLock()
	u, err := t.s.getLocked(id)
	v := t.s.versions[id]
	t.s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if _, seen := t.read[id]; !seen {
		t.read[id] = v
	}
	if a, ok := t.activity[id]; ok {
		u.Activity = a
	}
	return u, nil
}

func (t *tx) SetActivity(ctx context.Context, id types.ID, a users.Activity) error {
	if _, err := t.s.getUser(id); err != nil {
		return err
	}
	t.activity[id] = a
	return nil
}

// commit checks that every user read is unchanged and applies the buffered
// activity writes. Callers hold mu.
func (t *tx) commit() error {
	for id, v := range t.read {
		if t.s.versions[id] != v {
			return fmt.Errorf("%w: %s", errStaleRead, id)
		}
	}
	for id := range t.activity {
		if _, ok := t.s.users[id]; !ok {
			return fmt.Errorf("%w: %s", users.ErrNotFound, id)
		}
	}
	for id, a := range t.activity {
		c := t.s.users[id].Clone()
		c.Activity = a
		t.s.users[id] = c
	}
	return nil
}

func (s *Store) newTx() *tx {
	return &tx{s: s, read: map[types.ID]uint64{}, activity: map[types.ID]users.Activity{}}
}

// retry runs attempt until it stops failing with errStaleRead. Exhausting the
// budget reports the request as contended.
func retry(attempt func() error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		if err = attempt(); !errors.Is(err, errStaleRead) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", request.ErrInvalidState, err)
}

func (s *RequestStore) Create(ctx context.Context, r *request.ServiceRequest, fn func(ctx context.Context, tx request.Tx) error) error {
	base := r.Clone()
	first := true
	return retry(func() error {
		if !first {
			*r = *base.Clone()
		}
		first = false
		t := s.newTx()
		if err := fn(ctx, t); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.requests[r.ID]; ok {
			return fmt.Errorf("request %s already exists", r.ID)
		}
		if err := t.commit(); err != nil {
			return err
		}
		s.requests[r.ID] = r.Clone()
		return nil
	})
}

func (s *RequestStore) Get(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", request.ErrNotFound, id)
	}
	return r.Clone(), nil
}

func (s *RequestStore) User(ctx context.Context, id types.ID) (*users.User, error) {
	return s.getUser(id)
}

func (s *RequestStore) ListOpenByIntendedVendor(ctx context.Context, vendorID types.ID) ([]*request.ServiceRequest, error) {
	out := s.filter(func(r *request.ServiceRequest) bool {
		return r.Status == request.StatusOpen && r.IntendedVendorID != nil && *r.IntendedVendorID == vendorID
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RequestStore) ListByRequester(ctx context.Context, userID types.ID) ([]*request.ServiceRequest, error) {
	out := s.filter(func(r *request.ServiceRequest) bool { return r.RequestedBy(userID) })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RequestStore) filter(keep func(r *request.ServiceRequest) bool) []*request.ServiceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*request.ServiceRequest{}
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *RequestStore) Update(ctx context.Context, id types.ID, fn func(ctx context.Context, tx request.Tx, r *request.ServiceRequest) error) (*request.ServiceRequest, error) {
	defer s.requestLocks.lock(id)()

	var out *request.ServiceRequest
	err := retry(func() error {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		t := s.newTx()
		if err := fn(ctx, t, cur); err != nil {
			if errors.Is(err, request.ErrSkipWrite) {
				out, err = s.Get(ctx, id)
				return err
			}
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err := t.commit(); err != nil {
			return err
		}
		cur.ID = id
		s.requests[id] = cur.Clone()
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
