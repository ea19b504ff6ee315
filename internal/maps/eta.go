// Package maps adapts the Google Maps Directions API as an ETA provider for
// candidate scoring.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"xpress/internal/types"
)

type ETAService struct {
	client *maps.Client
}

func NewETAService(apiKey string) (*ETAService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &ETAService{client: client}, nil
}

// PickupETA returns the driving duration from the driver's position to the
// pickup point.
func (s *ETAService) PickupETA(ctx context.Context, from, to types.Point) (time.Duration, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}
	return routes[0].Legs[0].Duration, nil
}
