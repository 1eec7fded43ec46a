// Package directions computes driving routes through an external directions
// provider and resolves stops through its places and geocoding services.
package directions

import (
	"context"

	"routedesk/internal/geo"
)

// StatusOK is the provider status for a successful answer.
const StatusOK = "OK"

// Request asks for a driving route from Origin to Destination through
// Waypoints, each of which is a stopover visited in slice order.
type Request struct {
	Origin      geo.Point
	Destination geo.Point
	Waypoints   []geo.Point
}

// Leg is one segment between consecutive stops.
type Leg struct {
	DistanceMeters int
}

// ProviderRoute is one candidate route as reported by the provider.
type ProviderRoute struct {
	Legs        []Leg
	EncodedPath string
}

// Response is the provider's answer. A Status other than StatusOK means no
// usable route.
type Response struct {
	Status       string
	ErrorMessage string
	Routes       []ProviderRoute
}

// Provider is the directions capability.
type Provider interface {
	Directions(ctx context.Context, req Request) (*Response, error)
}

// Prediction is a ranked place suggestion for a partial query.
type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
	MainText    string `json:"main_text,omitempty"`
}

// Place is a resolved place.
type Place struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	FormattedAddress string    `json:"formatted_address"`
	Location         geo.Point `json:"location"`
}

// Places is the places search and geocoding capability.
type Places interface {
	Autocomplete(ctx context.Context, input string) ([]Prediction, error)
	PlaceDetails(ctx context.Context, placeID string) (*Place, error)
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}
