// README: Nearest-qualified-vendor selection with an exclusion set.
package routing

import (
	"context"
	"fmt"

	"quickfix/internal/types"
)

type Selector struct {
	dir Directory
}

func NewSelector(dir Directory) *Selector {
	return &Selector{dir: dir}
}

// Nearest returns the closest vendor qualified for tag, skipping excluded
// vendors and vendors without coordinates. It returns nil when origin is nil
// or nothing qualifies; neither case is an error.
func (s *Selector) Nearest(ctx context.Context, tag string, origin *types.Point, exclude Exclusion) (*Candidate, error) {
	if origin == nil {
		return nil, nil
	}
	candidates, err := s.dir.Qualified(ctx, NormalizeTag(tag))
	if err != nil {
		return nil, fmt.Errorf("directory lookup %q: %w", tag, err)
	}
	return pickNearest(candidates, *origin, exclude), nil
}

// pickNearest keeps the first candidate at the minimal distance.
func pickNearest(candidates []Candidate, origin types.Point, exclude Exclusion) *Candidate {
	var best *Candidate
	bestKm := 0.0
	for i := range candidates {
		c := candidates[i]
		if c.Position == nil || exclude.Has(c.VendorID) {
			continue
		}
		d := HaversineKm(origin, *c.Position)
		if best == nil || d < bestKm {
			best = &c
			bestKm = d
		}
	}
	return best
}
