package models

import "routedesk/internal/geo"

// TripStop is a stop as stored on a trip. Older trips were saved with
// coordinates as text, so both forms are read.
type TripStop struct {
	Name      string    `json:"name"`
	Latitude  geo.Input `json:"latitude"`
	Longitude geo.Input `json:"longitude"`
	Order     int       `json:"order,omitempty"`
}

// PayloadStop is a stop sent to the fleet API. Coordinates are always numbers.
type PayloadStop struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Order     int     `json:"order"`
}
