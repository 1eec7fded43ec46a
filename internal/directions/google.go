package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/metrics"
)

// DefaultBaseURL is the Google Maps web services host.
const DefaultBaseURL = "https://maps.googleapis.com"

// GoogleConfig configures a GoogleClient.
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	// Timeout bounds each request. Zero leaves it to the transport.
	Timeout time.Duration
	// RatePerSecond throttles outgoing calls. Zero disables throttling.
	RatePerSecond float64
	// CacheTTL keeps places and geocoding answers. Zero disables caching.
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// GoogleClient talks to the Google Maps Directions, Places and Geocoding web
// services. It implements both Provider and Places.
type GoogleClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewGoogleClient creates a client from cfg.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	c := &GoogleClient{
		apiKey:  cfg.APIKey,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: cfg.Metrics,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	settings := gobreaker.Settings{
		Name:        "maps",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
			c.metrics.SetBreakerState(name, int(to))
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(settings)
	return c
}

type directionsPayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// Directions implements Provider.
func (c *GoogleClient) Directions(ctx context.Context, req Request) (*Response, error) {
	q := url.Values{}
	q.Set("origin", req.Origin.String())
	q.Set("destination", req.Destination.String())
	if len(req.Waypoints) > 0 {
		wps := make([]string, 0, len(req.Waypoints))
		for _, w := range req.Waypoints {
			wps = append(wps, w.String())
		}
		q.Set("waypoints", strings.Join(wps, "|"))
	}
	q.Set("mode", "driving")

	var payload directionsPayload
	if err := c.get(ctx, "directions", "/maps/api/directions/json", q, &payload); err != nil {
		return nil, err
	}

	resp := &Response{Status: payload.Status, ErrorMessage: payload.ErrorMessage}
	for _, r := range payload.Routes {
		pr := ProviderRoute{EncodedPath: r.OverviewPolyline.Points}
		for _, l := range r.Legs {
			pr.Legs = append(pr.Legs, Leg{DistanceMeters: l.Distance.Value})
		}
		resp.Routes = append(resp.Routes, pr)
	}
	return resp, nil
}

type autocompletePayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID              string `json:"place_id"`
		Description          string `json:"description"`
		StructuredFormatting struct {
			MainText string `json:"main_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

// Autocomplete implements Places.
func (c *GoogleClient) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	key := "ac:" + strings.ToLower(strings.TrimSpace(input))
	if v, ok := c.cached(key); ok {
		return v.([]Prediction), nil
	}

	q := url.Values{}
	q.Set("input", input)

	var payload autocompletePayload
	if err := c.get(ctx, "autocomplete", "/maps/api/place/autocomplete/json", q, &payload); err != nil {
		return nil, err
	}
	if err := statusError("places", payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, len(payload.Predictions))
	for _, p := range payload.Predictions {
		out = append(out, Prediction{
			PlaceID:     p.PlaceID,
			Description: p.Description,
			MainText:    p.StructuredFormatting.MainText,
		})
	}
	c.store(key, out)
	return out, nil
}

type detailsPayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         *struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// PlaceDetails implements Places.
func (c *GoogleClient) PlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	key := "pd:" + placeID
	if v, ok := c.cached(key); ok {
		p := v.(Place)
		return &p, nil
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "name,formatted_address,geometry")

	var payload detailsPayload
	if err := c.get(ctx, "place_details", "/maps/api/place/details/json", q, &payload); err != nil {
		return nil, err
	}
	if err := statusError("places", payload.Status, payload.ErrorMessage); err != nil {
		return nil, err
	}
	if payload.Result.Geometry == nil {
		return nil, &apperrors.ExternalServiceError{Service: "places", Status: payload.Status, Err: errors.New("place has no geometry")}
	}

	place := Place{
		PlaceID:          placeID,
		Name:             payload.Result.Name,
		FormattedAddress: payload.Result.FormattedAddress,
		Location:         geo.Point{Lat: payload.Result.Geometry.Location.Lat, Lng: payload.Result.Geometry.Location.Lng},
	}
	c.store(key, place)
	return &place, nil
}

type geocodePayload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// ReverseGeocode implements Places.
func (c *GoogleClient) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	key := "rg:" + p.String()
	if v, ok := c.cached(key); ok {
		return v.(string), nil
	}

	q := url.Values{}
	q.Set("latlng", p.String())

	var payload geocodePayload
	if err := c.get(ctx, "reverse_geocode", "/maps/api/geocode/json", q, &payload); err != nil {
		return "", err
	}
	if err := statusError("geocoding", payload.Status, payload.ErrorMessage); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", nil
	}

	addr := payload.Results[0].FormattedAddress
	c.store(key, addr)
	return addr, nil
}

// errCallerGone marks failures caused by the caller's context ending. They say
// nothing about the provider, so the breaker counts them as successes.
var errCallerGone = errors.New("request abandoned by caller")

func callerErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", errCallerGone, err)
	}
	return err
}

// get performs one GET through the limiter and the circuit breaker and decodes
// the JSON body into out. Only transport and HTTP failures count against the
// breaker; provider status codes are judged by the caller, and a cancelled or
// expired request context never trips it.
func (c *GoogleClient) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &apperrors.ExternalServiceError{Service: "maps", Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	q.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	start := time.Now()
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, callerErr(ctx, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, callerErr(ctx, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("maps %s returned %s", op, resp.Status)
		}
		return b, nil
	})
	c.metrics.ObserveUpstream("maps", op, start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logrus.WithField("op", op).Warn("Maps circuit breaker is open, skipping call")
		}
		return &apperrors.ExternalServiceError{Service: "maps", Err: err}
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return &apperrors.ExternalServiceError{Service: "maps", Err: fmt.Errorf("decode %s: %w", op, err)}
	}
	return nil
}

func (c *GoogleClient) cached(key string) (interface{}, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *GoogleClient) store(key string, v interface{}) {
	if c.cache == nil {
		return
	}
	c.cache.SetDefault(key, v)
}

// statusError maps a places/geocoding status to an error. ZERO_RESULTS is an
// empty answer, not a failure.
func statusError(service, status, message string) error {
	if status == StatusOK || status == "ZERO_RESULTS" {
		return nil
	}
	var err error
	if message != "" {
		err = errors.New(message)
	}
	return &apperrors.ExternalServiceError{Service: service, Status: status, Err: err}
}
