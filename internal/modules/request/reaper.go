// README: Acceptance-window timeout check and reroute exclusion policy.
package request

import (
	"fmt"
	"time"

	"quickfix/internal/modules/routing"
)

// DefaultAcceptWindow is how long an intended vendor has to act before the
// requester's next read reroutes the request.
const DefaultAcceptWindow = 60 * time.Second

// ExclusionPolicy decides which vendors a reroute may not pick.
type ExclusionPolicy string

const (
	// ExclusionOneStep excludes only the vendor currently holding the offer.
	// A vendor skipped two cycles ago can be offered the request again.
	ExclusionOneStep ExclusionPolicy = "one_step"
	// ExclusionCumulative excludes every vendor the request was ever offered to.
	ExclusionCumulative ExclusionPolicy = "cumulative"
)

func ParseExclusionPolicy(s string) (ExclusionPolicy, error) {
	switch p := ExclusionPolicy(s); p {
	case ExclusionOneStep, ExclusionCumulative:
		return p, nil
	case "":
		return ExclusionOneStep, nil
	}
	return "", fmt.Errorf("unknown exclusion policy %q", s)
}

// Exclusions returns the reroute exclusion set for r under p.
func (p ExclusionPolicy) Exclusions(r *ServiceRequest) routing.Exclusion {
	ex := routing.NewExclusion()
	if r.IntendedVendorID != nil {
		ex.Add(*r.IntendedVendorID)
	}
	if p == ExclusionCumulative {
		for _, id := range r.RoutedVendors {
			ex.Add(id)
		}
	}
	return ex
}

// RerouteDue reports whether the intended vendor's window has lapsed.
func RerouteDue(r *ServiceRequest, now time.Time, window time.Duration) bool {
	if r.Status != StatusOpen || r.IntendedVendorID == nil || r.LastRoutedAt == nil {
		return false
	}
	return now.Sub(*r.LastRoutedAt) >= window
}
