// README: Worker assignment validation.
package request

import (
	"fmt"

	"quickfix/internal/modules/users"
)

// ValidateAssignment checks, in order, that the request is OPEN, that the
// worker is on the vendor's roster and that the worker has the skill the
// request needs. Roster membership must hold from both sides: the vendor's
// derived roster and the worker's own vendor link. It never mutates its
// arguments.
func ValidateAssignment(r *ServiceRequest, vendor users.Vendor, worker *users.User) error {
	if r.Status != StatusOpen {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}
	if worker == nil || !vendor.Employs(worker.ID) || worker.VendorID == nil || *worker.VendorID != vendor.ID {
		return fmt.Errorf("%w: worker not under this vendor", ErrForbidden)
	}
	w, ok := worker.AsWorker()
	if !ok || !w.Skills.Has(r.ProblemDescription) {
		return fmt.Errorf("%w: worker lacks %s", ErrUnqualified, r.ProblemDescription)
	}
	return nil
}
