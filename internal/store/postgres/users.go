// README: users.Store on Postgres; vendor roster and coverage derived in SQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

const userColumns = `
	u.id, u.name, u.email, u.phone, u.roles, u.lat, u.lng, u.activity,
	u.device_token, u.skills, u.vendor_id, u.created_at,
	COALESCE((SELECT array_agg(w.id ORDER BY w.id) FROM users w WHERE w.vendor_id = u.id), '{}'),
	COALESCE((SELECT array_agg(DISTINCT s ORDER BY s) FROM users w, unnest(w.skills) s WHERE w.vendor_id = u.id), '{}')`

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		u                 users.User
		roles             int16
		lat, lng          *float64
		vendorID          *string
		skills            []string
		workers, coverage []string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &roles, &lat, &lng, &u.Activity,
		&u.DeviceToken, &skills, &vendorID, &u.CreatedAt,
		&workers, &coverage,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = users.RoleSet(roles)
	u.Position = toPoint(lat, lng)
	u.VendorID = toID(vendorID)
	u.Skills = users.Skills(skills)
	if u.Roles.Has(users.RoleVendor) {
		u.Workers = toIDs(workers)
		u.Coverage = users.Coverage(coverage)
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, u *users.User) error {
	lat, lng := pointArgs(u.Position)
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (
			id, name, email, phone, roles, lat, lng, activity,
			device_token, skills, vendor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(u.ID), u.Name, u.Email, u.Phone, int16(u.Roles), lat, lng, string(u.Activity),
		u.DeviceToken, []string(u.Skills), idArg(u.VendorID), u.CreatedAt,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", users.ErrDuplicate, u.ID)
	}
	return err
}

func (s *UserStore) Get(ctx context.Context, id types.ID) (*users.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q querier, id types.ID) (*users.User, error) {
	return getUserSuffix(ctx, q, id, "")
}

func getUserSuffix(ctx context.Context, q querier, id types.ID, suffix string) (*users.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`+suffix, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	return u, err
}

func (s *UserStore) ListByRole(ctx context.Context, role users.Role) ([]*users.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE u.roles & $1 <> 0
		ORDER BY u.created_at, u.id`,
		int16(users.NewRoleSet(role)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*users.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func lockUser(ctx context.Context, q querier, id types.ID) error {
	var got string
	err := q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, string(id)).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	return err
}

// Update never writes activity; that column belongs to request units of work.
func (s *UserStore) Update(ctx context.Context, id types.ID, fn func(u *users.User) error) (*users.User, error) {
	var out *users.User
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, id); err != nil {
			return err
		}
		cur, err := getUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		lat, lng := pointArgs(cur.Position)
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET name = $2, email = $3, phone = $4, roles = $5, lat = $6, lng = $7,
			    device_token = $8, skills = $9, vendor_id = $10
			WHERE id = $1`,
			string(id), cur.Name, cur.Email, cur.Phone, int16(cur.Roles), lat, lng,
			cur.DeviceToken, []string(cur.Skills), idArg(cur.VendorID),
		)
		if err != nil {
			return err
		}
		out, err = getUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const involves = `$1 IN (requester_id, intended_vendor_id, assigned_vendor_id, worker_id)`

func (s *UserStore) Delete(ctx context.Context, id types.ID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, id); err != nil {
			return err
		}
		var rid, status string
		err := tx.QueryRow(ctx, `
			SELECT id, status FROM service_requests
			WHERE status <> $2 AND `+involves+`
			LIMIT 1`,
			string(id), string(request.StatusCompleted),
		).Scan(&rid, &status)
		switch {
		case err == nil:
			return fmt.Errorf("%w: request %s is %s", users.ErrConflict, rid, status)
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE service_requests
			SET requester_id = NULLIF(requester_id, $1),
			    intended_vendor_id = NULLIF(intended_vendor_id, $1),
			    assigned_vendor_id = NULLIF(assigned_vendor_id, $1),
			    worker_id = NULLIF(worker_id, $1)
			WHERE `+involves, string(id)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET vendor_id = NULL WHERE vendor_id = $1`, string(id)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, string(id))
		return err
	})
}
