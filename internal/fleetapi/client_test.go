package fleetapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedesk/internal/apperrors"
	"routedesk/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", 0, nil)
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name string
		body string
		keys []string
		want int
	}{
		{"bare array", `[{"_id":"a"},{"_id":"b"}]`, nil, 2},
		{"wrapped", `{"drivers":[{"_id":"a"}]}`, []string{"drivers"}, 1},
		{"second key", `{"routes":[{"_id":"a"}]}`, []string{"users", "routes"}, 1},
		{"missing key", `{"message":"none"}`, []string{"drivers"}, 0},
		{"key not array", `{"drivers":null}`, []string{"drivers"}, 0},
		{"empty body", ``, nil, 0},
		{"scalar", `"oops"`, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeList[models.Driver]([]byte(tt.body), tt.keys...)
			require.NoError(t, err)
			assert.NotNil(t, out)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestDecodeListBadJSON(t *testing.T) {
	_, err := DecodeList[models.Driver]([]byte(`[{"_id":1}]`))
	assert.Error(t, err)
}

func TestListTripsSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/trips/", r.URL.Path)
		assert.Equal(t, "Bearer upstream-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"_id":"t1","routeName":"Red","driver":{"_id":"d1","name":"Ali"},"bus":"b1","totalKm":5.32,
			 "stops":[{"name":"A","latitude":"24.86","longitude":67.0}],"routePolyline":"abc123","isActive":true}
		]`))
	})

	trips, err := c.ListTrips(context.Background(), Session{Token: "upstream-token"})
	require.NoError(t, err)
	require.Len(t, trips, 1)

	trip := trips[0]
	assert.Equal(t, "d1", trip.Driver.ID)
	assert.Equal(t, "Ali", trip.Driver.Name)
	assert.Equal(t, "b1", trip.Bus.ID)
	assert.Equal(t, 5.32, trip.TotalKm)
	assert.Equal(t, "24.86", string(trip.Stops[0].Latitude))
	assert.Equal(t, "67.0", string(trip.Stops[0].Longitude))
}

func TestAvailableDriversAndBusesUnwrap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/trips/available-drivers":
			_, _ = w.Write([]byte(`{"drivers":[{"_id":"d1","name":"Ali"}]}`))
		case "/api/trips/available-buses":
			_, _ = w.Write([]byte(`{"buses":[{"_id":"b1","busNumber":"KHI-1","isActive":true}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	drivers, err := c.AvailableDrivers(context.Background(), Session{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, []models.Driver{{ID: "d1", Name: "Ali"}}, drivers)

	buses, err := c.AvailableBuses(context.Background(), Session{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "KHI-1", buses[0].BusNumber)
}

func TestCreateAndUpdateTrip(t *testing.T) {
	var got []string
	var payload models.TripPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(b, &payload))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})

	p := models.TripPayload{
		RouteName:     "Red",
		TotalKm:       5.32,
		RoutePolyline: "abc123",
		Stops:         []models.PayloadStop{{Name: "A", Latitude: 24.86, Longitude: 67, Order: 1}},
	}
	require.NoError(t, c.CreateTrip(context.Background(), Session{Token: "t"}, p))
	require.NoError(t, c.UpdateTrip(context.Background(), Session{Token: "t"}, "t1", p))

	assert.Equal(t, []string{"POST /api/trips/", "PUT /api/trips/t1"}, got)
	assert.Equal(t, 5.32, payload.TotalKm)
	assert.Equal(t, 24.86, payload.Stops[0].Latitude)
}

func TestToggleTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/trips/t1/toggle", r.URL.Path)
		var body models.ToggleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.IsActive)
	})

	require.NoError(t, c.ToggleTrip(context.Background(), Session{Token: "t"}, "t1", true))
}

func TestErrorStatusIsNetworkError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"driver already assigned"}`))
	})

	err := c.CreateTrip(context.Background(), Session{Token: "t"}, models.TripPayload{})
	var nerr *apperrors.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadRequest, nerr.StatusCode)
	assert.Equal(t, "driver already assigned", nerr.Message)
	assert.Equal(t, "create_trip", nerr.Op)
}

func TestNotFoundAndUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admin/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetUser(context.Background(), Session{Token: "t"}, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = c.ListUsers(context.Background(), Session{Token: "expired"})
	assert.True(t, IsUnauthorized(err))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := NewClient(srv.URL, 0, nil)
	srv.Close()

	_, err := c.ListBuses(context.Background(), Session{Token: "t"})
	var nerr *apperrors.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Zero(t, nerr.StatusCode)
}

func TestLoginAndUserStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /api/auth/login":
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"token":"up","_id":"u1","name":"Admin","email":"a@x.io","role":"admin"}`))
		case "PUT /api/admin/u2":
			var body models.StatusUpdate
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, models.StatusApproved, body.Status)
		case "DELETE /api/admin/u2":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	resp, err := c.Login(context.Background(), models.Credentials{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "up", resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.Role)

	require.NoError(t, c.UpdateUserStatus(context.Background(), Session{Token: "up"}, "u2", models.StatusApproved))
	require.NoError(t, c.DeleteUser(context.Background(), Session{Token: "up"}, "u2"))
}
