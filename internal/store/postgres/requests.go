// README: request.Store on Postgres; one transaction per unit of work.
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

const requestColumns = `
	id, requester_id, problem_description, origin_lat, origin_lng, status,
	intended_vendor_id, assigned_vendor_id, worker_id, routed_vendors,
	last_routed_at, vehicle, created_at, updated_at, completed_at`

func scanRequest(row pgx.Row) (*request.ServiceRequest, error) {
	var (
		r                                       request.ServiceRequest
		requester, intended, assigned, workerID *string
		lat, lng                                *float64
		routed                                  []string
	)
	err := row.Scan(
		&r.ID, &requester, &r.ProblemDescription, &lat, &lng, &r.Status,
		&intended, &assigned, &workerID, &routed,
		&r.LastRoutedAt, &r.Vehicle, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	r.RequesterID = toID(requester)
	r.Origin = toPoint(lat, lng)
	r.IntendedVendorID = toID(intended)
	r.AssignedVendorID = toID(assigned)
	r.WorkerID = toID(workerID)
	r.RoutedVendors = toIDs(routed)
	return &r, nil
}

// pgTx is the request.Tx view of an open transaction. Activity writes go
// straight to the row and commit or roll back with the request.
type pgTx struct {
	tx pgx.Tx
}

// User share-locks the row, so roster moves, skill edits and deletes of the
// user (all FOR UPDATE) wait until the unit of work ends.
func (t pgTx) User(ctx context.Context, id types.ID) (*users.User, error) {
	return getUserSuffix(ctx, t.tx, id, ` FOR SHARE OF u`)
}

func (t pgTx) SetActivity(ctx context.Context, id types.ID, a users.Activity) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET activity = $2 WHERE id = $1`, string(id), string(a))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", users.ErrNotFound, id)
	}
	return nil
}

func (s *RequestStore) Create(ctx context.Context, r *request.ServiceRequest, fn func(ctx context.Context, tx request.Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := fn(ctx, pgTx{tx: tx}); err != nil {
			return err
		}
		lat, lng := pointArgs(r.Origin)
		_, err := tx.Exec(ctx, `
			INSERT INTO service_requests (`+requestColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			string(r.ID), idArg(r.RequesterID), r.ProblemDescription, lat, lng, string(r.Status),
			idArg(r.IntendedVendorID), idArg(r.AssignedVendorID), idArg(r.WorkerID), fromIDs(r.RoutedVendors),
			r.LastRoutedAt, r.Vehicle, r.CreatedAt, r.UpdatedAt, r.CompletedAt,
		)
		if isDuplicateKey(err) {
			return fmt.Errorf("request %s already exists", r.ID)
		}
		return err
	})
}

func (s *RequestStore) Get(ctx context.Context, id types.ID) (*request.ServiceRequest, error) {
	return getRequest(ctx, s.db, id, "")
}

func getRequest(ctx context.Context, q querier, id types.ID, suffix string) (*request.ServiceRequest, error) {
	r, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`+suffix, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: request %s", request.ErrNotFound, id)
	}
	return r, err
}

func (s *RequestStore) User(ctx context.Context, id types.ID) (*users.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *RequestStore) ListOpenByIntendedVendor(ctx context.Context, vendorID types.ID) ([]*request.ServiceRequest, error) {
	return s.list(ctx, `
		SELECT `+requestColumns+` FROM service_requests
		WHERE status = $2 AND intended_vendor_id = $1
		ORDER BY created_at, id`,
		string(vendorID), string(request.StatusOpen),
	)
}

func (s *RequestStore) ListByRequester(ctx context.Context, userID types.ID) ([]*request.ServiceRequest, error) {
	return s.list(ctx, `
		SELECT `+requestColumns+` FROM service_requests
		WHERE requester_id = $1
		ORDER BY created_at DESC, id`,
		string(userID),
	)
}

func (s *RequestStore) list(ctx context.Context, sql string, args ...any) ([]*request.ServiceRequest, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*request.ServiceRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RequestStore) Update(ctx context.Context, id types.ID, fn func(ctx context.Context, tx request.Tx, r *request.ServiceRequest) error) (*request.ServiceRequest, error) {
	var out *request.ServiceRequest
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		cur, err := getRequest(ctx, tx, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		if err := fn(ctx, pgTx{tx: tx}, cur); err != nil {
			return err
		}
		lat, lng := pointArgs(cur.Origin)
		_, err = tx.Exec(ctx, `
			UPDATE service_requests
			SET requester_id = $2, problem_description = $3, origin_lat = $4, origin_lng = $5,
			    status = $6, intended_vendor_id = $7, assigned_vendor_id = $8, worker_id = $9,
			    routed_vendors = $10, last_routed_at = $11, vehicle = $12, updated_at = $13,
			    completed_at = $14
			WHERE id = $1`,
			string(id), idArg(cur.RequesterID), cur.ProblemDescription, lat, lng,
			string(cur.Status), idArg(cur.IntendedVendorID), idArg(cur.AssignedVendorID), idArg(cur.WorkerID),
			fromIDs(cur.RoutedVendors), cur.LastRoutedAt, cur.Vehicle, cur.UpdatedAt,
			cur.CompletedAt,
		)
		cur.ID = id
		out = cur
		return err
	})
	if errors.Is(err, request.ErrSkipWrite) {
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
