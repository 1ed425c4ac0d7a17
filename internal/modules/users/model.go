// README: User aggregate with role capability sets and vendor/worker views.
package users

import (
	"slices"
	"strings"
	"time"

	"quickfix/internal/types"
)

type Role string

const (
	RoleUser   Role = "USER"
	RoleVendor Role = "VENDOR"
	RoleWorker Role = "WORKER"
	RoleAdmin  Role = "ADMIN"
)

var roleBits = map[Role]RoleSet{
	RoleUser:   1 << 0,
	RoleVendor: 1 << 1,
	RoleWorker: 1 << 2,
	RoleAdmin:  1 << 3,
}

var roleOrder = []Role{RoleUser, RoleVendor, RoleWorker, RoleAdmin}

// ParseRole accepts any casing; ok is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roleBits[r]
	return r, ok
}

// RoleSet is the set of roles a user holds.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var rs RoleSet
	for _, r := range roles {
		rs |= roleBits[r]
	}
	return rs
}

func (rs RoleSet) Has(r Role) bool {
	bit, ok := roleBits[r]
	return ok && rs&bit != 0
}

func (rs RoleSet) Roles() []Role {
	out := make([]Role, 0, len(roleOrder))
	for _, r := range roleOrder {
		if rs.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Capability is something a role entitles its holder to do.
type Capability int

const (
	CapRequestService Capability = iota
	CapOfferService
	CapPerformService
	CapAdminister
)

var capabilityRoles = map[Capability][]Role{
	CapRequestService: {RoleUser, RoleAdmin},
	CapOfferService:   {RoleVendor},
	CapPerformService: {RoleWorker},
	CapAdminister:     {RoleAdmin},
}

// Can reports whether any held role grants c.
func (rs RoleSet) Can(c Capability) bool {
	for _, r := range capabilityRoles[c] {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

type Activity string

const (
	ActivityIdle      Activity = "IDLE"
	ActivityWaiting   Activity = "WAITING"
	ActivityAssigned  Activity = "ASSIGNED"
	ActivityCompleted Activity = "COMPLETED"
)

// Skills is a worker's capability set. It is set directly and is the source
// of truth for qualification.
type Skills []string

func (s Skills) Has(tag string) bool { return slices.Contains(s, tag) }

// Coverage is a vendor's capability set. It is never set directly; it is the
// union of the skills of the vendor's current workers.
type Coverage []string

func (c Coverage) Has(tag string) bool { return slices.Contains(c, tag) }

// DeriveCoverage unions the roster's skills in sorted order.
func DeriveCoverage(roster ...Skills) Coverage {
	seen := map[string]struct{}{}
	out := Coverage{}
	for _, skills := range roster {
		for _, s := range skills {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

type User struct {
	ID          types.ID
	Name        string
	Email       string
	Phone       string
	Roles       RoleSet
	Position    *types.Point
	Activity    Activity
	DeviceToken string
	// Worker fields.
	Skills   Skills
	VendorID *types.ID
	// Vendor fields, derived by the store from workers whose VendorID points here.
	Workers   []types.ID
	Coverage  Coverage
	CreatedAt time.Time
}

// Vendor is the vendor-role view of a user.
type Vendor struct {
	ID       types.ID
	Position *types.Point
	Workers  []types.ID
	Coverage Coverage
}

func (v Vendor) Employs(workerID types.ID) bool {
	return slices.Contains(v.Workers, workerID)
}

// Worker is the worker-role view of a user.
type Worker struct {
	ID       types.ID
	VendorID *types.ID
	Skills   Skills
}

func (u *User) AsVendor() (Vendor, bool) {
	if u == nil || !u.Roles.Can(CapOfferService) {
		return Vendor{}, false
	}
	return Vendor{ID: u.ID, Position: u.Position, Workers: u.Workers, Coverage: u.Coverage}, true
}

func (u *User) AsWorker() (Worker, bool) {
	if u == nil || !u.Roles.Can(CapPerformService) {
		return Worker{}, false
	}
	return Worker{ID: u.ID, VendorID: u.VendorID, Skills: u.Skills}, true
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Position != nil {
		p := *u.Position
		c.Position = &p
	}
	if u.VendorID != nil {
		v := *u.VendorID
		c.VendorID = &v
	}
	c.Skills = slices.Clone(u.Skills)
	c.Workers = slices.Clone(u.Workers)
	c.Coverage = slices.Clone(u.Coverage)
	return &c
}
