// README: User service: registration, location, worker skills and vendor rosters.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"quickfix/internal/logger"
	"quickfix/internal/modules/routing"
	"quickfix/internal/types"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrConflict   = errors.New("user is party to an active request")
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
	ErrDuplicate  = errors.New("user already exists")
)

var validate = validator.New()

type Service struct {
	store Store
	index routing.Indexer
	log   logger.Logger
	now   func() time.Time
}

type Option func(*Service)

// WithIndexer mirrors vendor changes into a routing directory copy.
func WithIndexer(idx routing.Indexer) Option {
	return func(s *Service) { s.index = idx }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: logger.Nop{}, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

type RegisterCommand struct {
	ID types.ID
	// ActorID is who asks for the registration. Registering someone else or
	// granting ADMIN needs an admin actor.
	ActorID  types.ID
	Name     string   `validate:"required,max=120"`
	Email    string   `validate:"omitempty,email"`
	Phone    string   `validate:"omitempty,max=32"`
	Roles    []string `validate:"required,min=1,dive,required"`
	Position *types.Point
	Skills   []string
}

type UpdateLocationCommand struct {
	UserID   types.ID
	ActorID  types.ID
	Position types.Point
}

type SetSkillsCommand struct {
	WorkerID types.ID
	ActorID  types.ID
	Skills   []string
}

type RosterCommand struct {
	VendorID types.ID
	WorkerID types.ID
	ActorID  types.ID
}

type DeviceTokenCommand struct {
	UserID  types.ID
	ActorID types.ID
	Token   string
}

type DeleteCommand struct {
	UserID  types.ID
	ActorID types.ID
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	return s.register(ctx, cmd, false)
}

// Bootstrap registers without the actor checks. It is for trusted in-process
// callers such as the demo seed, which has to create the first admin.
func (s *Service) Bootstrap(ctx context.Context, cmd RegisterCommand) (*User, error) {
	return s.register(ctx, cmd, true)
}

func (s *Service) register(ctx context.Context, cmd RegisterCommand, trusted bool) (*User, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	var roles RoleSet
	for _, raw := range cmd.Roles {
		r, ok := ParseRole(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrBadRequest, raw)
		}
		roles |= NewRoleSet(r)
	}
	if cmd.Position != nil && !cmd.Position.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}
	if !trusted && (roles.Has(RoleAdmin) || (cmd.ActorID != "" && cmd.ID != cmd.ActorID)) {
		if err := s.requireAdmin(ctx, cmd.ActorID); err != nil {
			return nil, fmt.Errorf("%w: only an admin may grant ADMIN or register other users", err)
		}
	}
	id := cmd.ID
	if id == "" {
		id = types.NewID()
	}
	u := &User{
		ID:        id,
		Name:      cmd.Name,
		Email:     cmd.Email,
		Phone:     cmd.Phone,
		Roles:     roles,
		Position:  cmd.Position,
		Activity:  ActivityIdle,
		CreatedAt: s.now(),
	}
	if roles.Has(RoleWorker) {
		u.Skills = Skills(routing.NormalizeTags(cmd.Skills))
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Infof("registered user %s roles=%v", u.ID, roles.Roles())
	if roles.Has(RoleVendor) {
		s.reindex(ctx, u.ID)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByRole(ctx context.Context, role Role) ([]*User, error) {
	return s.store.ListByRole(ctx, role)
}

func (s *Service) UpdateLocation(ctx context.Context, cmd UpdateLocationCommand) (*User, error) {
	if !cmd.Position.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}
	if err := s.requireSelfOrAdmin(ctx, cmd.ActorID, cmd.UserID); err != nil {
		return nil, err
	}
	p := cmd.Position
	u, err := s.store.Update(ctx, cmd.UserID, func(u *User) error {
		u.Position = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if u.Roles.Has(RoleVendor) {
		s.reindex(ctx, u.ID)
	}
	return u, nil
}

func (s *Service) SetDeviceToken(ctx context.Context, cmd DeviceTokenCommand) error {
	if err := s.requireSelfOrAdmin(ctx, cmd.ActorID, cmd.UserID); err != nil {
		return err
	}
	_, err := s.store.Update(ctx, cmd.UserID, func(u *User) error {
		u.DeviceToken = cmd.Token
		return nil
	})
	return err
}

// SetSkills replaces a worker's skills and refreshes the owning vendor's
// coverage. The worker, its vendor or an admin may call it.
func (s *Service) SetSkills(ctx context.Context, cmd SetSkillsCommand) (*User, error) {
	w, err := s.store.Get(ctx, cmd.WorkerID)
	if err != nil {
		return nil, err
	}
	if _, ok := w.AsWorker(); !ok {
		return nil, fmt.Errorf("%w: %s is not a worker", ErrBadRequest, cmd.WorkerID)
	}
	if cmd.ActorID != w.ID && (w.VendorID == nil || *w.VendorID != cmd.ActorID) {
		if err := s.requireAdmin(ctx, cmd.ActorID); err != nil {
			return nil, err
		}
	}
	skills := Skills(routing.NormalizeTags(cmd.Skills))
	updated, err := s.store.Update(ctx, cmd.WorkerID, func(u *User) error {
		u.Skills = skills
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.VendorID != nil {
		s.reindex(ctx, *updated.VendorID)
	}
	return updated, nil
}

// AddWorker puts the worker on the vendor's roster, moving it off any
// previous vendor.
func (s *Service) AddWorker(ctx context.Context, cmd RosterCommand) (*User, error) {
	if err := s.requireSelfOrAdmin(ctx, cmd.ActorID, cmd.VendorID); err != nil {
		return nil, err
	}
	v, err := s.store.Get(ctx, cmd.VendorID)
	if err != nil {
		return nil, err
	}
	if _, ok := v.AsVendor(); !ok {
		return nil, fmt.Errorf("%w: %s is not a vendor", ErrBadRequest, cmd.VendorID)
	}
	var previous *types.ID
	_, err = s.store.Update(ctx, cmd.WorkerID, func(u *User) error {
		if _, ok := u.AsWorker(); !ok {
			return fmt.Errorf("%w: %s is not a worker", ErrBadRequest, cmd.WorkerID)
		}
		previous = u.VendorID
		vid := cmd.VendorID
		u.VendorID = &vid
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != nil && *previous != cmd.VendorID {
		s.reindex(ctx, *previous)
	}
	s.reindex(ctx, cmd.VendorID)
	return s.store.Get(ctx, cmd.VendorID)
}

// RemoveWorker takes the worker off the vendor's roster.
func (s *Service) RemoveWorker(ctx context.Context, cmd RosterCommand) (*User, error) {
	if err := s.requireSelfOrAdmin(ctx, cmd.ActorID, cmd.VendorID); err != nil {
		return nil, err
	}
	_, err := s.store.Update(ctx, cmd.WorkerID, func(u *User) error {
		if u.VendorID == nil || *u.VendorID != cmd.VendorID {
			return fmt.Errorf("%w: worker not under this vendor", ErrForbidden)
		}
		u.VendorID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, cmd.VendorID)
	return s.store.Get(ctx, cmd.VendorID)
}

// Delete removes a user who is not party to any OPEN or ASSIGNED request.
func (s *Service) Delete(ctx context.Context, cmd DeleteCommand) error {
	if err := s.requireSelfOrAdmin(ctx, cmd.ActorID, cmd.UserID); err != nil {
		return err
	}
	u, err := s.store.Get(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, cmd.UserID); err != nil {
		return err
	}
	s.log.Infof("deleted user %s", cmd.UserID)
	if u.Roles.Has(RoleVendor) && s.index != nil {
		if err := s.index.Remove(ctx, u.ID); err != nil {
			s.log.Errorf("routing index remove %s: %v", u.ID, err)
		}
	}
	if u.VendorID != nil {
		s.reindex(ctx, *u.VendorID)
	}
	return nil
}

// ReindexVendors pushes every vendor into the routing index.
func (s *Service) ReindexVendors(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	vendors, err := s.store.ListByRole(ctx, RoleVendor)
	if err != nil {
		return err
	}
	for _, v := range vendors {
		if err := s.index.Upsert(ctx, vendorEntry(v)); err != nil {
			return fmt.Errorf("index vendor %s: %w", v.ID, err)
		}
	}
	s.log.Infof("indexed %d vendors", len(vendors))
	return nil
}

// reindex is best-effort; the store stays the source of truth.
func (s *Service) reindex(ctx context.Context, vendorID types.ID) {
	if s.index == nil {
		return
	}
	v, err := s.store.Get(ctx, vendorID)
	if err != nil {
		s.log.Errorf("routing index load %s: %v", vendorID, err)
		return
	}
	if err := s.index.Upsert(ctx, vendorEntry(v)); err != nil {
		s.log.Errorf("routing index upsert %s: %v", vendorID, err)
	}
}

func vendorEntry(v *User) routing.VendorEntry {
	return routing.VendorEntry{VendorID: v.ID, Position: v.Position, Coverage: v.Coverage}
}

func (s *Service) requireSelfOrAdmin(ctx context.Context, actorID, subject types.ID) error {
	if actorID != "" && actorID == subject {
		return nil
	}
	return s.requireAdmin(ctx, actorID)
}

func (s *Service) requireAdmin(ctx context.Context, actorID types.ID) error {
	if actorID == "" {
		return ErrForbidden
	}
	actor, err := s.store.Get(ctx, actorID)
	if errors.Is(err, ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !actor.Roles.Can(CapAdminister) {
		return ErrForbidden
	}
	return nil
}
