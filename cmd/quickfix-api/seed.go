// README: Demo data (Bangalore requesters, vendors and their workers).
package main

import (
	"context"
	"errors"

	"quickfix/internal/logger"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

type seedUser struct {
	id       types.ID
	name     string
	roles    []string
	position *types.Point
	skills   []string
	vendor   types.ID
}

func at(lat, lng float64) *types.Point { return &types.Point{Lat: lat, Lng: lng} }

var demoUsers = []seedUser{
	{id: "admin", name: "Admin", roles: []string{"ADMIN"}},
	{id: "kalyan", name: "Kalyan", roles: []string{"USER"}, position: at(12.9719, 77.6412)},
	{id: "gayatri", name: "Gayatri", roles: []string{"USER"}, position: at(12.9719, 77.6412)},
	{id: "deepak", name: "Deepak", roles: []string{"USER"}, position: at(12.9293, 77.5825)},
	{id: "user2", name: "User Two", roles: []string{"USER"}},
	{id: "vendor1", name: "Jayanagar Roadside", roles: []string{"VENDOR"}, position: at(12.9293, 77.5825)},
	{id: "vendor2", name: "Koramangala Rescue", roles: []string{"VENDOR"}, position: at(12.9345, 77.6260)},
	{id: "vendor3", name: "Marathahalli Motors", roles: []string{"VENDOR"}, position: at(12.9569, 77.7011)},
	{id: "vendor4", name: "Majestic Auto Care", roles: []string{"VENDOR"}, position: at(12.9767, 77.5713)},
	{id: "worker1", name: "Ravi", roles: []string{"WORKER"}, skills: []string{"TOWING_SERVICE", "FLAT_TYRE"}, vendor: "vendor1"},
	{id: "worker2", name: "Imran", roles: []string{"WORKER"}, skills: []string{"TOWING_SERVICE", "BATTERY_JUMPSTART"}, vendor: "vendor2"},
	{id: "worker3", name: "Suresh", roles: []string{"WORKER"}, skills: []string{"OUT_OF_FUEL", "KEY_LOCKOUT"}, vendor: "vendor3"},
	{id: "worker4", name: "Anil", roles: []string{"WORKER"}, skills: []string{"MINOR_REPAIRS", "FLAT_TYRE"}, vendor: "vendor4"},
}

// seed registers the demo users. Existing users are left untouched, so it
// can run on every start.
func seed(ctx context.Context, svc *users.Service, log logger.Logger) error {
	created := 0
	for _, u := range demoUsers {
		_, err := svc.Bootstrap(ctx, users.RegisterCommand{
			ID:       u.id,
			Name:     u.name,
			Roles:    u.roles,
			Position: u.position,
			Skills:   u.skills,
		})
		switch {
		case errors.Is(err, users.ErrDuplicate):
			continue
		case err != nil:
			return err
		}
		created++
		if u.vendor != "" {
			if _, err := svc.AddWorker(ctx, users.RosterCommand{VendorID: u.vendor, WorkerID: u.id, ActorID: u.vendor}); err != nil {
				return err
			}
		}
	}
	log.Infof("seeded %d demo users", created)
	return nil
}
