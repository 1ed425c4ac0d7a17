// README: users.Store on maps; vendor roster and coverage derived on read.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

func (s *UserStore) Create(ctx context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: %s", users.ErrDuplicate, u.ID)
	}
	c := u.Clone()
	c.Workers, c.Coverage = nil, nil
	s.users[u.ID] = c
	s.touch(&c.ID, c.VendorID)
	return nil
}

func (s *UserStore) Get(ctx context.Context, id types.ID) (*users.User, error) {
	return s.getUser(id)
}

func (s *Store) getUser(id types.ID) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id types.ID) (*users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	return s.derive(u), nil
}

func (s *UserStore) ListByRole(ctx context.Context, role users.Role) ([]*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*users.User{}
	for _, u := range s.users {
		if u.Roles.Has(role) {
			out = append(out, s.derive(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *UserStore) Update(ctx context.Context, id types.ID, fn func(u *users.User) error) (*users.User, error) {
	defer s.userLocks.lock(id)()

	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(cur); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	next := cur.Clone()
	next.ID = id
	// Activity belongs to the request lifecycle.
	next.Activity = stored.Activity
	next.Workers, next.Coverage = nil, nil
	s.users[id] = next
	// A roster move changes both vendors' derived view.
	s.touch(&id, stored.VendorID, next.VendorID)
	return s.derive(next), nil
}

func (s *UserStore) Delete(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	for _, r := range s.requests {
		if r.Status != request.StatusCompleted && r.Involves(id) {
			return fmt.Errorf("%w: request %s is %s", users.ErrConflict, r.ID, r.Status)
		}
	}
	for rid, r := range s.requests {
		if !r.Involves(id) {
			continue
		}
		c := r.Clone()
		for _, p := range []**types.ID{&c.RequesterID, &c.IntendedVendorID, &c.AssignedVendorID, &c.WorkerID} {
			if *p != nil && **p == id {
				*p = nil
			}
		}
		s.requests[rid] = c
	}
	for wid, w := range s.users {
		if w.VendorID != nil && *w.VendorID == id {
			c := w.Clone()
			c.VendorID = nil
			s.users[wid] = c
			s.touch(&c.ID)
		}
	}
	s.touch(&id, s.users[id].VendorID)
	delete(s.users, id)
	return nil
}

// derive returns a copy of u with vendor Workers and Coverage filled in from
// the current roster. Callers hold mu.
func (s *Store) derive(u *users.User) *users.User {
	c := u.Clone()
	if !c.Roles.Has(users.RoleVendor) {
		c.Workers, c.Coverage = nil, nil
		return c
	}
	var roster []users.Skills
	c.Workers = []types.ID{}
	for _, w := range s.users {
		if w.VendorID != nil && *w.VendorID == u.ID {
			c.Workers = append(c.Workers, w.ID)
			roster = append(roster, w.Skills)
		}
	}
	slices.Sort(c.Workers)
	c.Coverage = users.DeriveCoverage(roster...)
	return c
}
