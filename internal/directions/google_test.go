package directions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
)

func newMapsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleDirections(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "24.86,67", q.Get("origin"))
		assert.Equal(t, "24.9,67.05", q.Get("destination"))
		assert.Equal(t, "24.87,67.01|24.88,67.02", q.Get("waypoints"))
		assert.Equal(t, "driving", q.Get("mode"))
		assert.Equal(t, "test-key", q.Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[{"distance":{"value":2000}},{"distance":{"value":3320}}],"overview_polyline":{"points":"abc123"}}]}`))
	})

	c := NewGoogleClient(GoogleConfig{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := c.Directions(context.Background(), Request{
		Origin:      geo.Point{Lat: 24.86, Lng: 67.00},
		Destination: geo.Point{Lat: 24.90, Lng: 67.05},
		Waypoints:   []geo.Point{{Lat: 24.87, Lng: 67.01}, {Lat: 24.88, Lng: 67.02}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "abc123", resp.Routes[0].EncodedPath)
	assert.Len(t, resp.Routes[0].Legs, 2)

	route, err := NewComputer(c, nil).Compute(context.Background(), []geo.Point{
		{Lat: 24.86, Lng: 67.00}, {Lat: 24.87, Lng: 67.01}, {Lat: 24.88, Lng: 67.02}, {Lat: 24.90, Lng: 67.05},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.32, route.TotalKm)
}

func TestGoogleDirectionsStatusPassedThrough(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","routes":[]}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	resp, err := c.Directions(context.Background(), Request{Origin: geo.Point{Lat: 1, Lng: 1}, Destination: geo.Point{Lat: 2, Lng: 2}})
	require.NoError(t, err)
	assert.Equal(t, "ZERO_RESULTS", resp.Status)
}

func TestGoogleHTTPFailure(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	_, err := c.Directions(context.Background(), Request{Origin: geo.Point{Lat: 1, Lng: 1}, Destination: geo.Point{Lat: 2, Lng: 2}})

	var ext *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "maps", ext.Service)
}

func TestGoogleCancelledCallsDoNotTripBreaker(t *testing.T) {
	var hits int32
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"legs":[{"distance":{"value":1000}}],"overview_polyline":{"points":"abc123"}}]}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	req := Request{Origin: geo.Point{Lat: 1, Lng: 1}, Destination: geo.Point{Lat: 2, Lng: 2}}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 8; i++ {
		_, err := c.Directions(cancelled, req)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	expired, cancelExpired := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancelExpired()
	<-expired.Done()
	_, err := c.Directions(expired, req)
	require.Error(t, err)

	resp, err := c.Directions(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestGoogleAutocompleteCachesAnswers(t *testing.T) {
	var hits int32
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/maps/api/place/autocomplete/json", r.URL.Path)
		assert.Equal(t, "clifton", r.URL.Query().Get("input"))
		_, _ = w.Write([]byte(`{"status":"OK","predictions":[{"place_id":"p1","description":"Clifton, Karachi","structured_formatting":{"main_text":"Clifton"}}]}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL, CacheTTL: time.Minute})
	for i := 0; i < 2; i++ {
		preds, err := c.Autocomplete(context.Background(), "clifton")
		require.NoError(t, err)
		require.Len(t, preds, 1)
		assert.Equal(t, "p1", preds[0].PlaceID)
		assert.Equal(t, "Clifton", preds[0].MainText)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGoogleAutocompleteZeroResults(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","predictions":[]}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	preds, err := c.Autocomplete(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestGooglePlaceDetails(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))
		assert.Equal(t, "name,formatted_address,geometry", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Clifton","formatted_address":"Clifton, Karachi","geometry":{"location":{"lat":24.81,"lng":67.03}}}}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	place, err := c.PlaceDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Clifton, Karachi", place.FormattedAddress)
	assert.Equal(t, geo.Point{Lat: 24.81, Lng: 67.03}, place.Location)
}

func TestGooglePlaceDetailsDenied(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"key invalid"}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	_, err := c.PlaceDetails(context.Background(), "p1")

	var ext *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "REQUEST_DENIED", ext.Status)
}

func TestGoogleReverseGeocode(t *testing.T) {
	srv := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "24.86,67", r.URL.Query().Get("latlng"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Saddar, Karachi"},{"formatted_address":"Karachi"}]}`))
	})

	c := NewGoogleClient(GoogleConfig{BaseURL: srv.URL})
	addr, err := c.ReverseGeocode(context.Background(), geo.Point{Lat: 24.86, Lng: 67.00})
	require.NoError(t, err)
	assert.Equal(t, "Saddar, Karachi", addr)
}

type fakePlaces struct {
	place   *Place
	addr    string
	err     error
	queries []string
}

func (f *fakePlaces) Autocomplete(_ context.Context, input string) ([]Prediction, error) {
	f.queries = append(f.queries, input)
	return []Prediction{{PlaceID: "p1", Description: input}}, f.err
}

func (f *fakePlaces) PlaceDetails(context.Context, string) (*Place, error) {
	return f.place, f.err
}

func (f *fakePlaces) ReverseGeocode(context.Context, geo.Point) (string, error) {
	return f.addr, f.err
}

func TestStopFinderSuggest(t *testing.T) {
	places := &fakePlaces{}
	f := NewStopFinder(places)

	preds, err := f.Suggest(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, preds)
	assert.Empty(t, places.queries)

	preds, err = f.Suggest(context.Background(), "saddar")
	require.NoError(t, err)
	assert.Len(t, preds, 1)

	_, err = NewStopFinder(nil).Suggest(context.Background(), "saddar")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestStopFinderFromPlace(t *testing.T) {
	f := NewStopFinder(&fakePlaces{place: &Place{Name: "Clifton", Location: geo.Point{Lat: 24.81, Lng: 67.03}}})

	s, err := f.FromPlace(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Clifton", s.Name)
	assert.Equal(t, geo.Input("24.81"), s.Latitude)
	assert.Equal(t, geo.Input("67.03"), s.Longitude)

	f = NewStopFinder(&fakePlaces{place: &Place{Name: "Clifton", FormattedAddress: "Clifton, Karachi"}})
	s, err = f.FromPlace(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Clifton, Karachi", s.Name)
}

func TestStopFinderAtPointFallsBack(t *testing.T) {
	p := geo.Point{Lat: 24.86, Lng: 67.00}

	s := NewStopFinder(&fakePlaces{err: errors.New("quota")}).AtPoint(context.Background(), p, 3)
	assert.Equal(t, "Stop 3", s.Name)
	assert.Equal(t, geo.Input("24.86"), s.Latitude)

	s = NewStopFinder(&fakePlaces{addr: "Saddar, Karachi"}).AtPoint(context.Background(), p, 3)
	assert.Equal(t, "Saddar, Karachi", s.Name)

	s = NewStopFinder(nil).AtPoint(context.Background(), p, 1)
	assert.Equal(t, "Stop 1", s.Name)
}
