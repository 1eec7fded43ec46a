// Package fleetapi is the client for the hosted fleet REST API that owns
// users, buses and trips.
package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"routedesk/internal/apperrors"
	"routedesk/internal/metrics"
	"routedesk/internal/models"
)

// Session is the credential for one signed-in operator. It is passed to every
// call; the client holds no ambient token.
type Session struct {
	Token string
}

// Client talks to the fleet API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient returns a client rooted at baseURL, e.g.
// "https://vehicle-management-ecru.vercel.app/api".
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// Login exchanges credentials for an upstream token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", Session{}, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTrips returns every trip.
func (c *Client) ListTrips(ctx context.Context, s Session) ([]models.Trip, error) {
	body, err := c.do(ctx, "list_trips", http.MethodGet, "/trips/", s, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Trip]("list_trips", body, "trips", "routes")
}

// AvailableDrivers returns drivers free to be assigned to a trip.
func (c *Client) AvailableDrivers(ctx context.Context, s Session) ([]models.Driver, error) {
	body, err := c.do(ctx, "available_drivers", http.MethodGet, "/trips/available-drivers", s, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Driver]("available_drivers", body, "drivers")
}

// AvailableBuses returns buses free to be assigned to a trip.
func (c *Client) AvailableBuses(ctx context.Context, s Session) ([]models.Bus, error) {
	body, err := c.do(ctx, "available_buses", http.MethodGet, "/trips/available-buses", s, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Bus]("available_buses", body, "buses")
}

// CreateTrip persists a new trip.
func (c *Client) CreateTrip(ctx context.Context, s Session, p models.TripPayload) error {
	_, err := c.do(ctx, "create_trip", http.MethodPost, "/trips/", s, p)
	return err
}

// UpdateTrip replaces the trip with id.
func (c *Client) UpdateTrip(ctx context.Context, s Session, id string, p models.TripPayload) error {
	_, err := c.do(ctx, "update_trip", http.MethodPut, "/trips/"+url.PathEscape(id), s, p)
	return err
}

// ToggleTrip sets a trip's active flag.
func (c *Client) ToggleTrip(ctx context.Context, s Session, id string, active bool) error {
	_, err := c.do(ctx, "toggle_trip", http.MethodPut, "/trips/"+url.PathEscape(id)+"/toggle", s, models.ToggleRequest{IsActive: active})
	return err
}

// ListUsers returns every user known to the fleet API.
func (c *Client) ListUsers(ctx context.Context, s Session) ([]models.User, error) {
	body, err := c.do(ctx, "list_users", http.MethodGet, "/admin/", s, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.User]("list_users", body, "users")
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, s Session, id string) (*models.User, error) {
	var out models.User
	if err := c.doJSON(ctx, "get_user", http.MethodGet, "/admin/"+url.PathEscape(id), s, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserStatus sets a user's approval status.
func (c *Client) UpdateUserStatus(ctx context.Context, s Session, id, status string) error {
	_, err := c.do(ctx, "update_user", http.MethodPut, "/admin/"+url.PathEscape(id), s, models.StatusUpdate{Status: status})
	return err
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, s Session, id string) error {
	_, err := c.do(ctx, "delete_user", http.MethodDelete, "/admin/"+url.PathEscape(id), s, nil)
	return err
}

// ListBuses returns every bus.
func (c *Client) ListBuses(ctx context.Context, s Session) ([]models.Bus, error) {
	body, err := c.do(ctx, "list_buses", http.MethodGet, "/buses/", s, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Bus]("list_buses", body, "buses")
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, s Session, in, out any) error {
	body, err := c.do(ctx, op, method, path, s, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apperrors.NetworkError{Op: op, Message: "unexpected response body", Err: err}
	}
	return nil
}

// do sends one request and returns the body of a 2xx answer. Everything else
// is a NetworkError: transport failures carry StatusCode 0.
func (c *Client) do(ctx context.Context, op, method, path string, s Session, in any) (body []byte, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveUpstream("fleet", op, start, err) }()

	var reqBody io.Reader
	if in != nil {
		b, merr := json.Marshal(in)
		if merr != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, merr)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		nerr := &apperrors.NetworkError{Op: op, StatusCode: resp.StatusCode, Message: upstreamMessage(body)}
		if resp.StatusCode == http.StatusNotFound {
			nerr.Err = apperrors.ErrNotFound
		}
		return nil, nerr
	}
	return body, nil
}

func decodeList[T any](op string, body []byte, keys ...string) ([]T, error) {
	out, err := DecodeList[T](body, keys...)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op, Message: "unexpected response body", Err: err}
	}
	return out, nil
}

// upstreamMessage pulls the fleet API's "message" or "error" field out of an
// error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// IsUnauthorized reports whether err is the fleet API rejecting the token.
func IsUnauthorized(err error) bool {
	var nerr *apperrors.NetworkError
	return errors.As(err, &nerr) && (nerr.StatusCode == http.StatusUnauthorized || nerr.StatusCode == http.StatusForbidden)
}
