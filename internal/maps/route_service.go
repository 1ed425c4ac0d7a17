// README: Google Maps directions client used for vendor ETAs.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"quickfix/internal/types"
)

// ErrNoRoute means the directions API found no drivable route.
var ErrNoRoute = errors.New("no route found")

// Estimate is the driving time and distance between two points.
type Estimate struct {
	Duration time.Duration `json:"-"`
	Seconds  int64         `json:"duration_seconds"`
	Distance string        `json:"distance"`
	Meters   int           `json:"distance_meters"`
}

type directions interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// RouteService handles interactions with the Google Maps directions API.
type RouteService struct {
	client directions
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// ETA returns the driving estimate from origin to destination.
func (s *RouteService) ETA(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(origin),
		Destination: latLng(destination),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, ErrNoRoute
	}
	leg := routes[0].Legs[0]
	return Estimate{
		Duration: leg.Duration,
		Seconds:  int64(leg.Duration / time.Second),
		Distance: leg.Distance.HumanReadable,
		Meters:   leg.Distance.Meters,
	}, nil
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
