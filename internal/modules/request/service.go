// README: Request service implements routing, rerouting and lifecycle transitions.
package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"quickfix/internal/logger"
	"quickfix/internal/metrics"
	"quickfix/internal/modules/enrichment"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrForbidden    = errors.New("forbidden")
	ErrUnqualified  = errors.New("worker not qualified")
	ErrBadRequest   = errors.New("bad request")
)

var validate = validator.New()

// Router picks the vendor a request is offered to.
type Router interface {
	Nearest(ctx context.Context, tag string, origin *types.Point, exclude routing.Exclusion) (*routing.Candidate, error)
}

// Enricher turns requester-supplied vehicle data into optional facts. It
// must not fail.
type Enricher interface {
	Enrich(ctx context.Context, in enrichment.Input) enrichment.Result
}

// Notifier tells the intended vendor about a new offer.
type Notifier interface {
	OfferPlaced(ctx context.Context, r *ServiceRequest) error
}

type Service struct {
	store     Store
	router    Router
	enricher  Enricher
	notifier  Notifier
	metrics   metrics.Recorder
	log       logger.Logger
	now       func() time.Time
	window    time.Duration
	exclusion ExclusionPolicy
}

type Option func(*Service)

func WithEnricher(e Enricher) Option { return func(s *Service) { s.enricher = e } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithMetrics(m metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithAcceptWindow overrides DefaultAcceptWindow. Non-positive values are ignored.
func WithAcceptWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithExclusionPolicy(p ExclusionPolicy) Option {
	return func(s *Service) { s.exclusion = p }
}

func NewService(store Store, router Router, opts ...Option) *Service {
	s := &Service{
		store:     store,
		router:    router,
		metrics:   metrics.Nop{},
		log:       logger.Nop{},
		now:       time.Now,
		window:    DefaultAcceptWindow,
		exclusion: ExclusionOneStep,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateCommand struct {
	RequesterID        types.ID `validate:"required"`
	ProblemDescription string   `validate:"required,max=64"`
	Vehicle            enrichment.Input
}

type TransitionCommand struct {
	RequestID types.ID
	Action    string
	VendorID  types.ID
}

type AssignCommand struct {
	RequestID types.ID
	VendorID  types.ID
	WorkerID  types.ID
}

type CompleteCommand struct {
	RequestID types.ID
	UserID    types.ID
}

// Create opens a request for the requester, offers it to the nearest
// qualified vendor and moves the requester to WAITING.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ServiceRequest, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	tag := routing.NormalizeTag(cmd.ProblemDescription)
	if tag == "" {
		return nil, fmt.Errorf("%w: empty problem description", ErrBadRequest)
	}

	requester := cmd.RequesterID
	// Unknown or forbidden callers are turned away before any enrichment call.
	u, err := s.store.User(ctx, requester)
	if err != nil {
		return nil, userErr(err, "requester", requester)
	}
	if err := checkRequester(u); err != nil {
		return nil, err
	}

	var vehicle enrichment.Result
	if s.enricher != nil {
		vehicle = s.enricher.Enrich(ctx, cmd.Vehicle)
	}

	now := s.now()
	r := &ServiceRequest{
		ID:                 types.NewID(),
		RequesterID:        types.IDPtr(requester),
		ProblemDescription: tag,
		Status:             StatusOpen,
		Vehicle:            vehicle,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err = s.store.Create(ctx, r, func(ctx context.Context, tx Tx) error {
		u, err := tx.User(ctx, requester)
		if err != nil {
			return userErr(err, "requester", requester)
		}
		if err := checkRequester(u); err != nil {
			return err
		}
		if u.Position != nil {
			p := *u.Position
			r.Origin = &p
		}
		if err := s.route(ctx, tx, r, "create", routing.NewExclusion(), now); err != nil {
			return err
		}
		return tx.SetActivity(ctx, requester, activityFor(r.Status))
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("request %s opened by %s for %s, offered to %s", r.ID, requester, tag, vendorOrNone(r.IntendedVendorID))
	s.notifyOffer(ctx, r)
	return r, nil
}

// Get returns the request. When the requester reads an OPEN request whose
// intended vendor let the accept window lapse, the request is rerouted first.
func (s *Service) Get(ctx context.Context, id, actorID types.ID) (*ServiceRequest, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.RequestedBy(actorID) || !RerouteDue(r, s.now(), s.window) {
		return r, nil
	}
	return s.reroute(ctx, id)
}

func (s *Service) reroute(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	var previous types.ID
	rerouted := false
	r, err := s.store.Update(ctx, id, func(ctx context.Context, tx Tx, r *ServiceRequest) error {
		now := s.now()
		// Another reader may have rerouted while we waited for the lock.
		if !RerouteDue(r, now, s.window) {
			return ErrSkipWrite
		}
		previous = *r.IntendedVendorID
		if err := s.route(ctx, tx, r, "timeout", s.exclusion.Exclusions(r), now); err != nil {
			return err
		}
		r.LastRoutedAt = &now
		r.UpdatedAt = now
		rerouted = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rerouted {
		s.log.Infof("request %s: %s did not respond, offered to %s", r.ID, previous, vendorOrNone(r.IntendedVendorID))
		s.notifyOffer(ctx, r)
	}
	return r, nil
}

// route offers r to the nearest qualified vendor outside exclude. A nil
// origin skips routing and leaves the request unrouted. The pick is re-read
// through tx so the offer only goes to a vendor that still exists and still
// covers the tag when the unit of work commits.
func (s *Service) route(ctx context.Context, tx Tx, r *ServiceRequest, trigger string, exclude routing.Exclusion, now time.Time) error {
	if r.Origin == nil {
		r.IntendedVendorID = nil
		s.metrics.RoutingDecision(trigger, "no_origin")
		return nil
	}
	r.LastRoutedAt = &now
	for {
		c, err := s.router.Nearest(ctx, r.ProblemDescription, r.Origin, exclude)
		if err != nil {
			return err
		}
		if c == nil {
			r.IntendedVendorID = nil
			s.metrics.RoutingDecision(trigger, "none")
			return nil
		}
		ok, err := s.stillQualified(ctx, tx, c.VendorID, r.ProblemDescription)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warnf("directory returned stale vendor %s for %s", c.VendorID, r.ProblemDescription)
			exclude.Add(c.VendorID)
			continue
		}
		r.IntendedVendorID = types.IDPtr(c.VendorID)
		r.RoutedVendors = append(r.RoutedVendors, c.VendorID)
		s.metrics.RoutingDecision(trigger, "routed")
		return nil
	}
}

func (s *Service) stillQualified(ctx context.Context, tx Tx, id types.ID, tag string) (bool, error) {
	u, err := tx.User(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	v, ok := u.AsVendor()
	return ok && v.Coverage.Has(tag), nil
}

// ListOpenForVendor returns OPEN requests currently offered to vendorID.
func (s *Service) ListOpenForVendor(ctx context.Context, vendorID types.ID) ([]*ServiceRequest, error) {
	return s.store.ListOpenByIntendedVendor(ctx, vendorID)
}

// ListByRequester returns every request userID has opened, newest first.
func (s *Service) ListByRequester(ctx context.Context, userID types.ID) ([]*ServiceRequest, error) {
	return s.store.ListByRequester(ctx, userID)
}

// Transition applies a vendor action. Accept assigns the request to the
// vendor; deny is accepted and changes nothing.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*ServiceRequest, error) {
	action, ok := ParseAction(cmd.Action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrBadRequest, cmd.Action)
	}
	switch action {
	case ActionDeny:
		// Deny has no effect on the request yet; it is acknowledged so the
		// vendor app can dismiss the offer.
		r, err := s.store.Update(ctx, cmd.RequestID, func(ctx context.Context, tx Tx, r *ServiceRequest) error {
			if _, err := s.vendor(ctx, tx, cmd.VendorID); err != nil {
				return err
			}
			return ErrSkipWrite
		})
		s.recordTransition(action, err, "noop")
		return r, err
	default:
		r, err := s.store.Update(ctx, cmd.RequestID, func(ctx context.Context, tx Tx, r *ServiceRequest) error {
			if _, err := s.vendor(ctx, tx, cmd.VendorID); err != nil {
				return err
			}
			if !CanTransition(r.Status, StatusAssigned) {
				return fmt.Errorf("%w: cannot accept a %s request", ErrInvalidState, r.Status)
			}
			vid := cmd.VendorID
			r.Status = StatusAssigned
			r.AssignedVendorID = &vid
			r.UpdatedAt = s.now()
			return setActivity(ctx, tx, activityFor(r.Status), r.RequesterID, r.WorkerID)
		})
		s.recordTransition(action, err, "ok")
		if err == nil {
			s.log.Infof("request %s accepted by %s", r.ID, cmd.VendorID)
		}
		return r, err
	}
}

// AssignWorker assigns one of the vendor's qualified workers to an OPEN
// request and moves requester and worker to ASSIGNED.
func (s *Service) AssignWorker(ctx context.Context, cmd AssignCommand) (*ServiceRequest, error) {
	r, err := s.store.Update(ctx, cmd.RequestID, func(ctx context.Context, tx Tx, r *ServiceRequest) error {
		if !CanTransition(r.Status, StatusAssigned) {
			return fmt.Errorf("%w: cannot assign a %s request", ErrInvalidState, r.Status)
		}
		vendor, err := s.vendor(ctx, tx, cmd.VendorID)
		if err != nil {
			return err
		}
		worker, err := tx.User(ctx, cmd.WorkerID)
		if err != nil {
			return userErr(err, "worker", cmd.WorkerID)
		}
		if err := ValidateAssignment(r, vendor, worker); err != nil {
			return err
		}
		vid, wid := vendor.ID, worker.ID
		r.Status = StatusAssigned
		r.AssignedVendorID = &vid
		r.WorkerID = &wid
		r.UpdatedAt = s.now()
		return setActivity(ctx, tx, activityFor(r.Status), r.RequesterID, r.WorkerID)
	})
	s.recordTransition("assign", err, "ok")
	if err != nil {
		return nil, err
	}
	s.log.Infof("request %s assigned to worker %s of %s", r.ID, cmd.WorkerID, cmd.VendorID)
	return r, nil
}

// CompleteByUser lets the requester close an ASSIGNED request.
func (s *Service) CompleteByUser(ctx context.Context, cmd CompleteCommand) (*ServiceRequest, error) {
	r, err := s.store.Update(ctx, cmd.RequestID, func(ctx context.Context, tx Tx, r *ServiceRequest) error {
		if !CanTransition(r.Status, StatusCompleted) {
			return fmt.Errorf("%w: cannot complete a %s request", ErrInvalidState, r.Status)
		}
		if !r.RequestedBy(cmd.UserID) {
			return fmt.Errorf("%w: only the requester can complete", ErrForbidden)
		}
		now := s.now()
		r.Status = StatusCompleted
		r.CompletedAt = &now
		r.UpdatedAt = now
		return setActivity(ctx, tx, activityFor(r.Status), r.RequesterID, r.WorkerID)
	})
	s.recordTransition("complete", err, "ok")
	if err != nil {
		return nil, err
	}
	s.log.Infof("request %s completed", r.ID)
	return r, nil
}

// vendor resolves the acting vendor. Unknown ids and non-vendors have no
// standing to act on requests.
func (s *Service) vendor(ctx context.Context, tx Tx, id types.ID) (users.Vendor, error) {
	u, err := tx.User(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return users.Vendor{}, fmt.Errorf("%w: unknown vendor %s", ErrForbidden, id)
	}
	if err != nil {
		return users.Vendor{}, err
	}
	v, ok := u.AsVendor()
	if !ok {
		return users.Vendor{}, fmt.Errorf("%w: %s is not a vendor", ErrForbidden, id)
	}
	return v, nil
}

func setActivity(ctx context.Context, tx Tx, a users.Activity, ids ...*types.ID) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if err := tx.SetActivity(ctx, *id, a); err != nil {
			return fmt.Errorf("set %s activity: %w", *id, err)
		}
	}
	return nil
}

func (s *Service) notifyOffer(ctx context.Context, r *ServiceRequest) {
	if s.notifier == nil || r.IntendedVendorID == nil {
		return
	}
	if err := s.notifier.OfferPlaced(ctx, r.Clone()); err != nil {
		s.log.Warnf("notify %s about request %s: %v", *r.IntendedVendorID, r.ID, err)
	}
}

func (s *Service) recordTransition(action Action, err error, okResult string) {
	switch {
	case err == nil:
		s.metrics.Transition(string(action), okResult)
	case errors.Is(err, ErrInvalidState):
		s.metrics.Transition(string(action), "invalid_state")
	default:
		s.metrics.Transition(string(action), "rejected")
	}
}

func checkRequester(u *users.User) error {
	if !u.Roles.Can(users.CapRequestService) {
		return fmt.Errorf("%w: %s cannot request service", ErrForbidden, u.ID)
	}
	return nil
}

func userErr(err error, role string, id types.ID) error {
	if errors.Is(err, users.ErrNotFound) {
		return fmt.Errorf("%w: unknown %s %s", ErrNotFound, role, id)
	}
	return err
}

func vendorOrNone(id *types.ID) string {
	if id == nil {
		return "none"
	}
	return string(*id)
}
