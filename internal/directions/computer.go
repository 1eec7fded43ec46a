package directions

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/metrics"
)

// Route is a computed route: an opaque encoded path plus its total length.
type Route struct {
	Path    string  `json:"path"`
	TotalKm float64 `json:"total_km"`
	Legs    int     `json:"legs"`
}

// Computer turns an ordered list of stop coordinates into a Route.
type Computer struct {
	provider Provider
	metrics  *metrics.Metrics
}

// NewComputer returns a Computer backed by provider. A nil provider is
// accepted and makes every computation fail as unavailable.
func NewComputer(provider Provider, m *metrics.Metrics) *Computer {
	return &Computer{provider: provider, metrics: m}
}

// Compute asks the provider for a driving route that starts at the first
// point, ends at the last, and stops at every point in between in order.
// Points that are not finite are skipped; fewer than two usable points fail
// with InsufficientStopsError before any network call.
func (c *Computer) Compute(ctx context.Context, pts []geo.Point) (*Route, error) {
	valid := make([]geo.Point, 0, len(pts))
	for _, p := range pts {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	if len(valid) < 2 {
		c.metrics.ObserveComputation("insufficient_stops")
		return nil, &apperrors.InsufficientStopsError{Valid: len(valid)}
	}
	if c.provider == nil {
		c.metrics.ObserveComputation("unavailable")
		return nil, &apperrors.ExternalServiceError{Service: "directions", Err: apperrors.ErrUnavailable}
	}

	req := Request{
		Origin:      valid[0],
		Destination: valid[len(valid)-1],
		Waypoints:   valid[1 : len(valid)-1],
	}

	start := time.Now()
	resp, err := c.provider.Directions(ctx, req)
	if err != nil {
		c.metrics.ObserveComputation("error")
		var ext *apperrors.ExternalServiceError
		if errors.As(err, &ext) {
			return nil, err
		}
		return nil, &apperrors.ExternalServiceError{Service: "directions", Err: err}
	}

	route, err := routeFrom(resp)
	if err != nil {
		c.metrics.ObserveComputation("rejected")
		logrus.WithError(err).WithField("stops", len(valid)).Warn("Directions provider returned no usable route")
		return nil, err
	}

	c.metrics.ObserveComputation("ok")
	logrus.WithFields(logrus.Fields{
		"stops":    len(valid),
		"total_km": route.TotalKm,
		"took":     time.Since(start).String(),
	}).Info("Route computed")
	return route, nil
}

func routeFrom(resp *Response) (*Route, error) {
	if resp == nil {
		return nil, &apperrors.ExternalServiceError{Service: "directions", Err: errors.New("empty response")}
	}
	if resp.Status != StatusOK {
		var err error
		if resp.ErrorMessage != "" {
			err = errors.New(resp.ErrorMessage)
		}
		return nil, &apperrors.ExternalServiceError{Service: "directions", Status: resp.Status, Err: err}
	}
	if len(resp.Routes) == 0 {
		return nil, &apperrors.ExternalServiceError{Service: "directions", Status: resp.Status, Err: errors.New("no routes")}
	}

	best := resp.Routes[0]
	if best.EncodedPath == "" {
		return nil, &apperrors.ExternalServiceError{Service: "directions", Status: resp.Status, Err: errors.New("route has no path")}
	}

	var meters int
	for _, leg := range best.Legs {
		meters += leg.DistanceMeters
	}
	return &Route{
		Path:    best.EncodedPath,
		TotalKm: geo.RoundKm(float64(meters)),
		Legs:    len(best.Legs),
	}, nil
}
