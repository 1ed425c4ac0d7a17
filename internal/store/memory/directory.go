// README: routing.Directory over the in-memory users map.
package memory

import (
	"context"
	"sort"

	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// Qualified reads every vendor under one read lock, so a call sees a single
// roster version. Candidates come back ordered by vendor id.
func (s *Store) Qualified(ctx context.Context, tag string) ([]routing.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rosters := map[types.ID][]users.Skills{}
	for _, w := range s.users {
		if w.VendorID != nil {
			rosters[*w.VendorID] = append(rosters[*w.VendorID], w.Skills)
		}
	}
	out := []routing.Candidate{}
	for id, u := range s.users {
		if !u.Roles.Has(users.RoleVendor) {
			continue
		}
		if !users.DeriveCoverage(rosters[id]...).Has(tag) {
			continue
		}
		c := routing.Candidate{VendorID: id}
		if u.Position != nil {
			p := *u.Position
			c.Position = &p
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorID < out[j].VendorID })
	return out, nil
}
