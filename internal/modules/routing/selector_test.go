package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickfix/internal/types"
)

// staticDirectory serves a fixed candidate list per tag.
type staticDirectory struct {
	byTag map[string][]Candidate
	err   error
	asked []string
}

func (d *staticDirectory) Qualified(_ context.Context, tag string) ([]Candidate, error) {
	d.asked = append(d.asked, tag)
	if d.err != nil {
		return nil, d.err
	}
	return d.byTag[tag], nil
}

func pt(lat, lng float64) *types.Point { return &types.Point{Lat: lat, Lng: lng} }

var requester = pt(12.9719, 77.6412)

func bangaloreDirectory() *staticDirectory {
	return &staticDirectory{byTag: map[string][]Candidate{
		"TOWING": {
			{VendorID: "vendorA", Position: pt(12.9293, 77.5825)},
			{VendorID: "vendorB", Position: pt(12.9345, 77.6260)},
		},
	}}
}

func TestNearestPicksClosestQualifiedVendor(t *testing.T) {
	sel := NewSelector(bangaloreDirectory())

	got, err := sel.Nearest(context.Background(), "TOWING", requester, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("vendorB"), got.VendorID)
}

func TestNearestHonoursExclusion(t *testing.T) {
	sel := NewSelector(bangaloreDirectory())
	ctx := context.Background()

	got, err := sel.Nearest(ctx, "TOWING", requester, NewExclusion("vendorB"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("vendorA"), got.VendorID)

	got, err = sel.Nearest(ctx, "TOWING", requester, NewExclusion("vendorA", "vendorB"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNearestNilOriginSkipsLookup(t *testing.T) {
	dir := bangaloreDirectory()
	sel := NewSelector(dir)

	got, err := sel.Nearest(context.Background(), "TOWING", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, dir.asked)
}

func TestNearestSkipsVendorsWithoutCoordinates(t *testing.T) {
	dir := &staticDirectory{byTag: map[string][]Candidate{
		"FLAT_TYRE": {
			{VendorID: "ghost"},
			{VendorID: "far", Position: pt(13.2, 77.9)},
		},
	}}
	sel := NewSelector(dir)

	got, err := sel.Nearest(context.Background(), "flat_tyre ", requester, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.ID("far"), got.VendorID)
	assert.Equal(t, []string{"FLAT_TYRE"}, dir.asked)
}

func TestNearestNoQualifiedVendor(t *testing.T) {
	sel := NewSelector(bangaloreDirectory())

	got, err := sel.Nearest(context.Background(), "KEY_LOCKOUT", requester, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNearestTieKeepsFirst(t *testing.T) {
	dir := &staticDirectory{byTag: map[string][]Candidate{
		"TOWING": {
			{VendorID: "first", Position: pt(12.98, 77.65)},
			{VendorID: "second", Position: pt(12.98, 77.65)},
		},
	}}
	got, err := NewSelector(dir).Nearest(context.Background(), "TOWING", requester, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ID("first"), got.VendorID)
}

func TestNearestDirectoryError(t *testing.T) {
	dir := &staticDirectory{err: errors.New("db down")}
	_, err := NewSelector(dir).Nearest(context.Background(), "TOWING", requester, nil)
	assert.ErrorContains(t, err, "db down")
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" towing", "TOWING", "", "flat_tyre"})
	assert.Equal(t, []string{"TOWING", "FLAT_TYRE"}, got)
}
