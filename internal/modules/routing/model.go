// README: Vendor candidates, directory contracts and capability tags.
package routing

import (
	"context"
	"strings"

	"quickfix/internal/types"
)

// Candidate is a vendor qualified for some capability tag. Position is nil
// when the vendor has never reported coordinates.
type Candidate struct {
	VendorID types.ID
	Position *types.Point
}

// Directory looks up vendors by capability tag. Every call must read from a
// single consistent snapshot of vendor coverage and coordinates.
type Directory interface {
	Qualified(ctx context.Context, tag string) ([]Candidate, error)
}

// VendorEntry is what an Indexer needs to keep a directory copy current.
type VendorEntry struct {
	VendorID types.ID
	Position *types.Point
	Coverage []string
}

// Indexer receives vendor roster and location changes.
type Indexer interface {
	Upsert(ctx context.Context, v VendorEntry) error
	Remove(ctx context.Context, vendorID types.ID) error
}

// Exclusion is a set of vendor ids that must not be selected.
type Exclusion map[types.ID]struct{}

func NewExclusion(ids ...types.ID) Exclusion {
	ex := make(Exclusion, len(ids))
	for _, id := range ids {
		ex.Add(id)
	}
	return ex
}

func (e Exclusion) Add(id types.ID) {
	if id != "" {
		e[id] = struct{}{}
	}
}

func (e Exclusion) Has(id types.ID) bool {
	_, ok := e[id]
	return ok
}

// NormalizeTag canonicalizes a capability tag ("towing " -> "TOWING").
func NormalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// NormalizeTags canonicalizes, de-duplicates and drops empty tags while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
