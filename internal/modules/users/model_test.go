package users

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quickfix/internal/types"
)

func TestRoleSet(t *testing.T) {
	rs := NewRoleSet(RoleVendor, RoleWorker)
	assert.True(t, rs.Has(RoleVendor))
	assert.True(t, rs.Has(RoleWorker))
	assert.False(t, rs.Has(RoleUser))
	assert.Equal(t, []Role{RoleVendor, RoleWorker}, rs.Roles())
	assert.False(t, rs.Has(Role("PILOT")))
}

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		roles RoleSet
		cap   Capability
		want  bool
	}{
		{NewRoleSet(RoleUser), CapRequestService, true},
		{NewRoleSet(RoleAdmin), CapRequestService, true},
		{NewRoleSet(RoleVendor), CapRequestService, false},
		{NewRoleSet(RoleVendor), CapOfferService, true},
		{NewRoleSet(RoleWorker), CapPerformService, true},
		{NewRoleSet(RoleUser, RoleWorker), CapOfferService, false},
		{NewRoleSet(RoleAdmin), CapAdminister, true},
		{NewRoleSet(RoleUser), CapAdminister, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.roles.Can(tc.cap), "%v can %d", tc.roles.Roles(), tc.cap)
	}
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" vendor ")
	assert.True(t, ok)
	assert.Equal(t, RoleVendor, r)
	_, ok = ParseRole("driver")
	assert.False(t, ok)
}

func TestDeriveCoverage(t *testing.T) {
	got := DeriveCoverage(Skills{"TOWING", "FLAT_TYRE"}, Skills{"FLAT_TYRE", "BATTERY_JUMPSTART"}, nil)
	assert.Equal(t, Coverage{"BATTERY_JUMPSTART", "FLAT_TYRE", "TOWING"}, got)
	assert.Empty(t, DeriveCoverage())
}

func TestRoleViews(t *testing.T) {
	vid := types.ID("v1")
	u := &User{ID: "x", Roles: NewRoleSet(RoleVendor), Workers: []types.ID{"w1"}, Coverage: Coverage{"TOWING"}}
	v, ok := u.AsVendor()
	assert.True(t, ok)
	assert.True(t, v.Employs("w1"))
	assert.False(t, v.Employs("w2"))
	_, ok = u.AsWorker()
	assert.False(t, ok)

	w := &User{ID: "w1", Roles: NewRoleSet(RoleWorker), Skills: Skills{"TOWING"}, VendorID: &vid}
	wv, ok := w.AsWorker()
	assert.True(t, ok)
	assert.True(t, wv.Skills.Has("TOWING"))
	_, ok = w.AsVendor()
	assert.False(t, ok)

	var nilUser *User
	_, ok = nilUser.AsVendor()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	vid := types.ID("v1")
	u := &User{ID: "w1", Position: &types.Point{Lat: 1, Lng: 2}, Skills: Skills{"TOWING"}, VendorID: &vid}
	c := u.Clone()
	c.Position.Lat = 9
	c.Skills[0] = "X"
	*c.VendorID = "v2"
	assert.Equal(t, 1.0, u.Position.Lat)
	assert.Equal(t, "TOWING", u.Skills[0])
	assert.Equal(t, types.ID("v1"), *u.VendorID)
}
