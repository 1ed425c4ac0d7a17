// README: Postgres-backed users, requests and vendor directory (pgx).
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quickfix/internal/modules/request"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/types"
)

// Store shares one pool between its users and requests views. Units of work
// run in a transaction and lock the rows they change with SELECT ... FOR UPDATE.
type Store struct {
	db *pgxpool.Pool
}

var (
	_ users.Store       = (*UserStore)(nil)
	_ request.Store     = (*RequestStore)(nil)
	_ routing.Directory = (*Store)(nil)
)

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

type UserStore struct{ *Store }

type RequestStore struct{ *Store }

func (s *Store) Users() *UserStore { return &UserStore{s} }

func (s *Store) Requests() *RequestStore { return &RequestStore{s} }

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func idArg(id *types.ID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}

func toID(s *string) *types.ID {
	if s == nil {
		return nil
	}
	id := types.ID(*s)
	return &id
}

func pointArgs(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lng
}

func toPoint(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}

func toIDs(ss []string) []types.ID {
	out := make([]types.ID, len(ss))
	for i, s := range ss {
		out[i] = types.ID(s)
	}
	return out
}

func fromIDs(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
