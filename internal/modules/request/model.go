// README: Service request aggregate, lifecycle statuses and vendor actions.
package request

import (
	"slices"
	"time"

	"quickfix/internal/modules/enrichment"
	"quickfix/internal/types"
)

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
)

type Action string

const (
	ActionAccept Action = "accept"
	ActionDeny   Action = "deny"
)

// ServiceRequest is one roadside-assistance call. RequesterID, vendor and
// worker ids are only ever nil on COMPLETED requests after the referenced
// user was deleted.
type ServiceRequest struct {
	ID                 types.ID
	RequesterID        *types.ID
	ProblemDescription string
	Origin             *types.Point
	Status             Status
	IntendedVendorID   *types.ID
	AssignedVendorID   *types.ID
	WorkerID           *types.ID
	// RoutedVendors lists every vendor the request was offered to, oldest first.
	RoutedVendors []types.ID
	LastRoutedAt  *time.Time
	Vehicle       enrichment.Result
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// RequestedBy reports whether userID owns the request.
func (r *ServiceRequest) RequestedBy(userID types.ID) bool {
	return r.RequesterID != nil && userID != "" && *r.RequesterID == userID
}

// Involves reports whether userID is the requester, a routed or assigned
// vendor, or the worker.
func (r *ServiceRequest) Involves(userID types.ID) bool {
	for _, p := range []*types.ID{r.RequesterID, r.IntendedVendorID, r.AssignedVendorID, r.WorkerID} {
		if p != nil && *p == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.RequesterID = cloneID(r.RequesterID)
	c.IntendedVendorID = cloneID(r.IntendedVendorID)
	c.AssignedVendorID = cloneID(r.AssignedVendorID)
	c.WorkerID = cloneID(r.WorkerID)
	if r.Origin != nil {
		p := *r.Origin
		c.Origin = &p
	}
	if r.LastRoutedAt != nil {
		t := *r.LastRoutedAt
		c.LastRoutedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	c.RoutedVendors = slices.Clone(r.RoutedVendors)
	return &c
}

func cloneID(id *types.ID) *types.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// RequestTypes is the catalogue offered to requesters. Problem tags are not
// restricted to it.
var RequestTypes = []string{
	"FLAT_TYRE",
	"BATTERY_JUMPSTART",
	"TOWING_SERVICE",
	"OUT_OF_FUEL",
	"KEY_LOCKOUT",
	"MINOR_REPAIRS",
}
