// Package routeform drives one route draft from its first stop to a saved
// trip: stop editing, route computation and persistence.
package routeform

import (
	"strconv"
	"strings"
	"time"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/models"
	"routedesk/internal/stops"
)

// FormTimeLayout is the local date-time form the editor works in.
const FormTimeLayout = "2006-01-02T15:04"

// Draft is the editable form behind a route.
type Draft struct {
	RouteName     string       `json:"routeName"`
	Driver        string       `json:"driver"`
	Bus           string       `json:"bus"`
	StartTime     string       `json:"startTime"`
	EndTime       string       `json:"endTime"`
	TotalKm       string       `json:"totalKm"`
	Stops         []stops.Stop `json:"stops"`
	RoutePolyline string       `json:"routePolyline"`
}

// Fields is a partial update of the draft's form fields. Nil fields are left
// alone. TotalKm accepts text or a number.
type Fields struct {
	RouteName *string    `json:"routeName"`
	Driver    *string    `json:"driver"`
	Bus       *string    `json:"bus"`
	StartTime *string    `json:"startTime"`
	EndTime   *string    `json:"endTime"`
	TotalKm   *geo.Input `json:"totalKm"`
}

func (f Fields) apply(d *Draft) {
	if f.RouteName != nil {
		d.RouteName = *f.RouteName
	}
	if f.Driver != nil {
		d.Driver = *f.Driver
	}
	if f.Bus != nil {
		d.Bus = *f.Bus
	}
	if f.StartTime != nil {
		d.StartTime = *f.StartTime
	}
	if f.EndTime != nil {
		d.EndTime = *f.EndTime
	}
	if f.TotalKm != nil {
		d.TotalKm = string(*f.TotalKm)
	}
}

// FromTrip hydrates a draft from a persisted trip. A trip without stops gets
// one blank stop so the editor has a row to fill in.
func FromTrip(t models.Trip) Draft {
	d := Draft{
		RouteName:     t.RouteName,
		Driver:        t.Driver.ID,
		Bus:           t.Bus.ID,
		StartTime:     formTime(t.StartTime),
		EndTime:       formTime(t.EndTime),
		RoutePolyline: t.RoutePolyline,
	}
	if t.TotalKm != 0 {
		d.TotalKm = strconv.FormatFloat(t.TotalKm, 'f', -1, 64)
	}

	for _, s := range t.Stops {
		d.Stops = append(d.Stops, stops.Stop{Name: s.Name, Latitude: s.Latitude, Longitude: s.Longitude})
	}
	if len(d.Stops) == 0 {
		d.Stops = []stops.Stop{{}}
	}
	return d
}

// formTime converts an ISO timestamp to the editor's minute-precision UTC
// form. Text that does not parse is cut to the same width.
func formTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format(FormTimeLayout)
	}
	if len(s) > len(FormTimeLayout) {
		return s[:len(FormTimeLayout)]
	}
	return s
}

// payload validates d for persistence and converts it to the wire body.
func (d Draft) payload() (models.TripPayload, error) {
	if d.RoutePolyline == "" {
		return models.TripPayload{}, apperrors.Validation("routePolyline", "compute the route before saving")
	}
	km, ok := geo.ToNumber(d.TotalKm)
	if !ok {
		return models.TripPayload{}, apperrors.Validation("totalKm", "Total KM is required and must be a number")
	}

	out := make([]models.PayloadStop, 0, len(d.Stops))
	for i, s := range d.Stops {
		p, ok := s.Point()
		if !ok {
			return models.TripPayload{}, apperrors.Validation("stops", "stop %d has invalid coordinates", i+1)
		}
		out = append(out, models.PayloadStop{Name: s.Name, Latitude: p.Lat, Longitude: p.Lng, Order: s.Order})
	}

	return models.TripPayload{
		RouteName:     d.RouteName,
		Driver:        d.Driver,
		Bus:           d.Bus,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		TotalKm:       km,
		Stops:         out,
		RoutePolyline: d.RoutePolyline,
	}, nil
}
