// README: routing.Directory over the users table.
package postgres

import (
	"context"

	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
)

// Qualified is a single statement, so it reads one snapshot of every roster.
func (s *Store) Qualified(ctx context.Context, tag string) ([]routing.Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.lat, v.lng
		FROM users v
		WHERE v.roles & $2 <> 0
		  AND EXISTS (
		      SELECT 1 FROM users w
		      WHERE w.vendor_id = v.id AND $1 = ANY (w.skills)
		  )
		ORDER BY v.id`,
		tag, int16(users.NewRoleSet(users.RoleVendor)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []routing.Candidate{}
	for rows.Next() {
		var (
			c        routing.Candidate
			lat, lng *float64
		)
		if err := rows.Scan(&c.VendorID, &lat, &lng); err != nil {
			return nil, err
		}
		c.Position = toPoint(lat, lng)
		out = append(out, c)
	}
	return out, rows.Err()
}
