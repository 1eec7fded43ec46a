package directions

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/stops"
)

// StopFinder turns places searches and map clicks into stops.
type StopFinder struct {
	places Places
}

// NewStopFinder returns a StopFinder. A nil places service makes searches fail
// as unavailable and map clicks fall back to default names.
func NewStopFinder(places Places) *StopFinder {
	return &StopFinder{places: places}
}

// Suggest returns predictions for a partial query. An empty query returns no
// predictions without calling the service.
func (f *StopFinder) Suggest(ctx context.Context, query string) ([]Prediction, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if f.places == nil {
		return nil, &apperrors.ExternalServiceError{Service: "places", Err: apperrors.ErrUnavailable}
	}
	return f.places.Autocomplete(ctx, query)
}

// FromPlace resolves a selected prediction into a stop named by its formatted
// address, or by the place name when there is no address.
func (f *StopFinder) FromPlace(ctx context.Context, placeID string) (stops.Stop, error) {
	if strings.TrimSpace(placeID) == "" {
		return stops.Stop{}, apperrors.Validation("place_id", "is required")
	}
	if f.places == nil {
		return stops.Stop{}, &apperrors.ExternalServiceError{Service: "places", Err: apperrors.ErrUnavailable}
	}

	place, err := f.places.PlaceDetails(ctx, placeID)
	if err != nil {
		return stops.Stop{}, err
	}

	name := place.FormattedAddress
	if name == "" {
		name = place.Name
	}
	return stops.Stop{
		Name:      name,
		Latitude:  geo.FromFloat(place.Location.Lat),
		Longitude: geo.FromFloat(place.Location.Lng),
	}, nil
}

// AtPoint builds a stop at a clicked map position. The name comes from reverse
// geocoding; any failure there falls back to DefaultName(order).
func (f *StopFinder) AtPoint(ctx context.Context, p geo.Point, order int) stops.Stop {
	s := stops.Stop{
		Name:      stops.DefaultName(order),
		Latitude:  geo.FromFloat(p.Lat),
		Longitude: geo.FromFloat(p.Lng),
	}
	if f.places == nil {
		return s
	}

	addr, err := f.places.ReverseGeocode(ctx, p)
	if err != nil {
		logrus.WithError(err).WithField("point", p.String()).Warn("Reverse geocoding failed, using default stop name")
		return s
	}
	if addr != "" {
		s.Name = addr
	}
	return s
}
