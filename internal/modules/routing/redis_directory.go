// README: Vendor directory backed by Redis GEO and per-tag sets.
package routing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"quickfix/internal/types"
)

const (
	vendorGeoKey     = "routing:vendors"
	tagKeyBase       = "routing:tag:"
	vendorTagsPrefix = "routing:vendor:%s:tags"
)

// qualifiedScript reads tag members and their positions in one atomic step so
// a selection never mixes two roster versions.
var qualifiedScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
local out = {}
for i, id in ipairs(ids) do
  local pos = redis.call('GEOPOS', KEYS[2], id)[1]
  if pos then
    out[i] = {id, pos[1], pos[2]}
  else
    out[i] = {id}
  end
end
return out
`)

// upsertScript swaps a vendor's tag memberships and position in one atomic
// step. The old memberships are read on the server, so two concurrent upserts
// of the same vendor cannot leave it in a tag set its tags key no longer lists.
// KEYS: vendor tags set, vendor geo set.
// ARGV: vendor id, tag key base, has position ("1" or "0"), lng, lat, tags...
var upsertScript = redis.NewScript(`
local id = ARGV[1]
local base = ARGV[2]
for _, t in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  redis.call('SREM', base .. t, id)
end
redis.call('DEL', KEYS[1])
if ARGV[3] == '1' then
  redis.call('GEOADD', KEYS[2], ARGV[4], ARGV[5], id)
else
  redis.call('ZREM', KEYS[2], id)
end
for i = 6, #ARGV do
  redis.call('SADD', base .. ARGV[i], id)
  redis.call('SADD', KEYS[1], ARGV[i])
end
return 0
`)

// RedisDirectory implements Directory and Indexer.
type RedisDirectory struct {
	redis *redis.Client
}

func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{redis: client}
}

func (d *RedisDirectory) Qualified(ctx context.Context, tag string) ([]Candidate, error) {
	raw, err := qualifiedScript.Run(ctx, d.redis, []string{tagKey(NormalizeTag(tag)), vendorGeoKey}).Slice()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(raw))
	for _, item := range raw {
		row, ok := item.([]interface{})
		if !ok || len(row) == 0 {
			continue
		}
		id, _ := row[0].(string)
		c := Candidate{VendorID: types.ID(id)}
		if len(row) == 3 {
			p, err := parseGeoPos(row[1], row[2])
			if err != nil {
				return nil, fmt.Errorf("vendor %s position: %w", id, err)
			}
			c.Position = p
		}
		out = append(out, c)
	}
	return out, nil
}

// Upsert replaces the vendor's tag memberships and position.
func (d *RedisDirectory) Upsert(ctx context.Context, v VendorEntry) error {
	coverage := NormalizeTags(v.Coverage)
	args := make([]interface{}, 0, 5+len(coverage))
	args = append(args, string(v.VendorID), tagKeyBase)
	if v.Position != nil {
		args = append(args, "1", formatCoord(v.Position.Lng), formatCoord(v.Position.Lat))
	} else {
		args = append(args, "0", "", "")
	}
	for _, t := range coverage {
		args = append(args, t)
	}
	return upsertScript.Run(ctx, d.redis, []string{vendorTagsKey(v.VendorID), vendorGeoKey}, args...).Err()
}

func (d *RedisDirectory) Remove(ctx context.Context, vendorID types.ID) error {
	return d.Upsert(ctx, VendorEntry{VendorID: vendorID})
}

func parseGeoPos(lng, lat interface{}) (*types.Point, error) {
	lngS, _ := lng.(string)
	latS, _ := lat.(string)
	x, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return nil, err
	}
	y, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, err
	}
	return &types.Point{Lat: y, Lng: x}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tagKey(tag string) string {
	return tagKeyBase + tag
}

func vendorTagsKey(id types.ID) string {
	return fmt.Sprintf(vendorTagsPrefix, string(id))
}
