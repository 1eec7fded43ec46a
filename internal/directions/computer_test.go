package directions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
)

type fakeProvider struct {
	resp  *Response
	err   error
	calls int
	last  Request
}

func (f *fakeProvider) Directions(_ context.Context, req Request) (*Response, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

func okResponse(path string, legs ...int) *Response {
	r := ProviderRoute{EncodedPath: path}
	for _, m := range legs {
		r.Legs = append(r.Legs, Leg{DistanceMeters: m})
	}
	return &Response{Status: StatusOK, Routes: []ProviderRoute{r}}
}

func TestComputeTwoStops(t *testing.T) {
	p := &fakeProvider{resp: okResponse("abc123", 5320)}
	c := NewComputer(p, nil)

	route, err := c.Compute(context.Background(), []geo.Point{{Lat: 24.86, Lng: 67.00}, {Lat: 24.90, Lng: 67.05}})
	require.NoError(t, err)

	assert.Equal(t, "abc123", route.Path)
	assert.Equal(t, 5.32, route.TotalKm)
	assert.Equal(t, 1, route.Legs)
	assert.Empty(t, p.last.Waypoints)
	assert.Equal(t, geo.Point{Lat: 24.86, Lng: 67.00}, p.last.Origin)
	assert.Equal(t, geo.Point{Lat: 24.90, Lng: 67.05}, p.last.Destination)
}

func TestComputeWaypointsInOrder(t *testing.T) {
	p := &fakeProvider{resp: okResponse("xyz", 1000, 2000, 345)}
	c := NewComputer(p, nil)

	pts := []geo.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}, {Lat: 3, Lng: 3}, {Lat: 4, Lng: 4}}
	route, err := c.Compute(context.Background(), pts)
	require.NoError(t, err)

	assert.Equal(t, []geo.Point{{Lat: 2, Lng: 2}, {Lat: 3, Lng: 3}}, p.last.Waypoints)
	assert.Equal(t, 3.35, route.TotalKm)
	assert.Equal(t, 3, route.Legs)
}

func TestComputeInsufficientStops(t *testing.T) {
	p := &fakeProvider{resp: okResponse("abc")}
	c := NewComputer(p, nil)

	for _, pts := range [][]geo.Point{nil, {{Lat: 1, Lng: 1}}} {
		_, err := c.Compute(context.Background(), pts)
		var ins *apperrors.InsufficientStopsError
		require.ErrorAs(t, err, &ins)
		assert.True(t, apperrors.IsValidation(err))
	}
	assert.Equal(t, 0, p.calls)
}

func TestComputeProviderStatus(t *testing.T) {
	pts := []geo.Point{{Lat: 24.86, Lng: 67.00}, {Lat: 24.90, Lng: 67.05}}

	tests := []struct {
		name   string
		resp   *Response
		status string
	}{
		{"zero results", &Response{Status: "ZERO_RESULTS"}, "ZERO_RESULTS"},
		{"denied", &Response{Status: "REQUEST_DENIED", ErrorMessage: "bad key"}, "REQUEST_DENIED"},
		{"ok without routes", &Response{Status: StatusOK}, StatusOK},
		{"route without path", &Response{Status: StatusOK, Routes: []ProviderRoute{{Legs: []Leg{{DistanceMeters: 1}}}}}, StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewComputer(&fakeProvider{resp: tt.resp}, nil)
			_, err := c.Compute(context.Background(), pts)

			var ext *apperrors.ExternalServiceError
			require.ErrorAs(t, err, &ext)
			assert.Equal(t, tt.status, ext.Status)
		})
	}
}

func TestComputeTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	c := NewComputer(&fakeProvider{err: boom}, nil)

	_, err := c.Compute(context.Background(), []geo.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	var ext *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.ErrorIs(t, err, boom)
}

func TestComputeWithoutProvider(t *testing.T) {
	c := NewComputer(nil, nil)

	_, err := c.Compute(context.Background(), []geo.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}
