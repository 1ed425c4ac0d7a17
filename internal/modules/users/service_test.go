// README: User service tests (registration, rosters, derived coverage, deletion).
package users_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/store/memory"
	"quickfix/internal/types"
)

type fakeIndex struct {
	mu      sync.Mutex
	entries map[types.ID]routing.VendorEntry
}

func (f *fakeIndex) Upsert(_ context.Context, v routing.VendorEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[v.VendorID] = v
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

func newService(t *testing.T) (*users.Service, *fakeIndex) {
	t.Helper()
	idx := &fakeIndex{entries: map[types.ID]routing.VendorEntry{}}
	return users.NewService(memory.New().Users(), users.WithIndexer(idx)), idx
}

func register(t *testing.T, svc *users.Service, id string, skills []string, roles ...string) *users.User {
	t.Helper()
	u, err := svc.Register(context.Background(), users.RegisterCommand{ID: types.ID(id), Name: id, Roles: roles, Skills: skills})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, users.RegisterCommand{Name: "Asha", Email: "asha@example.com", Roles: []string{"user", "worker"}, Skills: []string{"towing", "TOWING"}})
	require.NoError(t, err)
	assert.Len(t, string(u.ID), 32)
	assert.Equal(t, users.ActivityIdle, u.Activity)
	assert.True(t, u.Roles.Has(users.RoleWorker))
	assert.Equal(t, users.Skills{"TOWING"}, u.Skills)

	_, err = svc.Register(ctx, users.RegisterCommand{Name: "x", Roles: []string{"pilot"}})
	assert.ErrorIs(t, err, users.ErrBadRequest)

	_, err = svc.Register(ctx, users.RegisterCommand{Name: "x"})
	assert.ErrorIs(t, err, users.ErrBadRequest)

	_, err = svc.Register(ctx, users.RegisterCommand{Name: "x", Email: "not-an-email", Roles: []string{"USER"}})
	assert.ErrorIs(t, err, users.ErrBadRequest)

	_, err = svc.Register(ctx, users.RegisterCommand{ID: u.ID, Name: "dup", Roles: []string{"USER"}})
	assert.ErrorIs(t, err, users.ErrDuplicate)

	_, err = svc.Register(ctx, users.RegisterCommand{Name: "x", Roles: []string{"USER"}, Position: &types.Point{Lat: 91}})
	assert.ErrorIs(t, err, users.ErrBadRequest)
}

func TestVendorCoverageFollowsRoster(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()
	register(t, svc, "v1", nil, "VENDOR")
	register(t, svc, "w1", []string{"TOWING"}, "WORKER")
	register(t, svc, "w2", []string{"FLAT_TYRE"}, "WORKER")

	v, err := svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w1", ActorID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, users.Coverage{"TOWING"}, v.Coverage)

	v, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w2", ActorID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"w1", "w2"}, v.Workers)
	assert.Equal(t, users.Coverage{"FLAT_TYRE", "TOWING"}, v.Coverage)
	assert.Equal(t, []string{"FLAT_TYRE", "TOWING"}, idx.entries["v1"].Coverage)

	_, err = svc.SetSkills(ctx, users.SetSkillsCommand{WorkerID: "w1", ActorID: "w1", Skills: []string{"KEY_LOCKOUT"}})
	require.NoError(t, err)
	v, err = svc.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, users.Coverage{"FLAT_TYRE", "KEY_LOCKOUT"}, v.Coverage)
	assert.Equal(t, []string{"FLAT_TYRE", "KEY_LOCKOUT"}, idx.entries["v1"].Coverage)

	v, err = svc.RemoveWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w2", ActorID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"w1"}, v.Workers)
	assert.Equal(t, users.Coverage{"KEY_LOCKOUT"}, v.Coverage)
}

func TestAddWorkerMovesBetweenVendors(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()
	register(t, svc, "v1", nil, "VENDOR")
	register(t, svc, "v2", nil, "VENDOR")
	register(t, svc, "w1", []string{"TOWING"}, "WORKER")

	_, err := svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w1", ActorID: "v1"})
	require.NoError(t, err)
	_, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "v2", WorkerID: "w1", ActorID: "v2"})
	require.NoError(t, err)

	v1, err := svc.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, v1.Workers)
	assert.Empty(t, v1.Coverage)
	assert.Empty(t, idx.entries["v1"].Coverage)
	assert.Equal(t, []string{"TOWING"}, idx.entries["v2"].Coverage)
}

func TestRegisterAdminNeedsAdmin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "u1", nil, "USER")

	_, err := svc.Register(ctx, users.RegisterCommand{ID: "u2", ActorID: "u2", Name: "u2", Roles: []string{"ADMIN"}})
	assert.ErrorIs(t, err, users.ErrForbidden)
	_, err = svc.Register(ctx, users.RegisterCommand{ID: "u3", ActorID: "u1", Name: "u3", Roles: []string{"USER"}})
	assert.ErrorIs(t, err, users.ErrForbidden)
	_, err = svc.Get(ctx, "u2")
	assert.ErrorIs(t, err, users.ErrNotFound)

	_, err = svc.Bootstrap(ctx, users.RegisterCommand{ID: "root", Name: "root", Roles: []string{"ADMIN"}})
	require.NoError(t, err)
	u, err := svc.Register(ctx, users.RegisterCommand{ID: "ops", ActorID: "root", Name: "ops", Roles: []string{"admin", "USER"}})
	require.NoError(t, err)
	assert.True(t, u.Roles.Has(users.RoleAdmin))
	_, err = svc.Register(ctx, users.RegisterCommand{ID: "u3", ActorID: "root", Name: "u3", Roles: []string{"USER"}})
	require.NoError(t, err)
}

func TestRosterPermissions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "v1", nil, "VENDOR")
	register(t, svc, "v2", nil, "VENDOR")
	register(t, svc, "w1", []string{"TOWING"}, "WORKER")
	_, err := svc.Bootstrap(ctx, users.RegisterCommand{ID: "root", Name: "root", Roles: []string{"ADMIN"}})
	require.NoError(t, err)
	register(t, svc, "u1", nil, "USER")

	_, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w1", ActorID: "v2"})
	assert.ErrorIs(t, err, users.ErrForbidden)

	_, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "u1", ActorID: "v1"})
	assert.ErrorIs(t, err, users.ErrBadRequest)

	_, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "u1", WorkerID: "w1", ActorID: "u1"})
	assert.ErrorIs(t, err, users.ErrBadRequest)

	_, err = svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w1", ActorID: "root"})
	require.NoError(t, err)

	_, err = svc.RemoveWorker(ctx, users.RosterCommand{VendorID: "v2", WorkerID: "w1", ActorID: "v2"})
	assert.ErrorIs(t, err, users.ErrForbidden)

	_, err = svc.SetSkills(ctx, users.SetSkillsCommand{WorkerID: "w1", ActorID: "v2", Skills: []string{"X"}})
	assert.ErrorIs(t, err, users.ErrForbidden)

	_, err = svc.SetSkills(ctx, users.SetSkillsCommand{WorkerID: "w1", ActorID: "v1", Skills: []string{"X"}})
	assert.NoError(t, err)

	_, err = svc.UpdateLocation(ctx, users.UpdateLocationCommand{UserID: "v1", ActorID: "u1", Position: types.Point{Lat: 1, Lng: 1}})
	assert.ErrorIs(t, err, users.ErrForbidden)
}

func TestUpdateLocationReindexesVendor(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()
	register(t, svc, "v1", nil, "VENDOR")

	u, err := svc.UpdateLocation(ctx, users.UpdateLocationCommand{UserID: "v1", ActorID: "v1", Position: types.Point{Lat: 12.93, Lng: 77.62}})
	require.NoError(t, err)
	require.NotNil(t, u.Position)
	require.NotNil(t, idx.entries["v1"].Position)
	assert.Equal(t, 12.93, idx.entries["v1"].Position.Lat)

	_, err = svc.UpdateLocation(ctx, users.UpdateLocationCommand{UserID: "v1", ActorID: "v1", Position: types.Point{Lat: 12, Lng: 200}})
	assert.ErrorIs(t, err, users.ErrBadRequest)
}

func TestDeleteVendorReleasesWorkers(t *testing.T) {
	svc, idx := newService(t)
	ctx := context.Background()
	register(t, svc, "v1", nil, "VENDOR")
	register(t, svc, "w1", []string{"TOWING"}, "WORKER")
	_, err := svc.AddWorker(ctx, users.RosterCommand{VendorID: "v1", WorkerID: "w1", ActorID: "v1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, users.DeleteCommand{UserID: "v1", ActorID: "v1"}))
	_, err = svc.Get(ctx, "v1")
	assert.ErrorIs(t, err, users.ErrNotFound)
	_, ok := idx.entries["v1"]
	assert.False(t, ok)

	w, err := svc.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, w.VendorID)

	assert.ErrorIs(t, svc.Delete(ctx, users.DeleteCommand{UserID: "ghost", ActorID: "ghost"}), users.ErrNotFound)
}

func TestReindexVendors(t *testing.T) {
	st := memory.New()
	plain := users.NewService(st.Users())
	register(t, plain, "v1", nil, "VENDOR")
	register(t, plain, "v2", nil, "VENDOR")
	register(t, plain, "u1", nil, "USER")

	idx := &fakeIndex{entries: map[types.ID]routing.VendorEntry{}}
	svc := users.NewService(st.Users(), users.WithIndexer(idx))
	require.NoError(t, svc.ReindexVendors(context.Background()))
	assert.Len(t, idx.entries, 2)
}
