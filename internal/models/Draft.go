package models

import (
	"time"

	"routedesk/internal/stops"
)

// DraftRecord is the stored snapshot of a route draft, written after every
// change so an editor survives a restart.
type DraftRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   string `gorm:"index"` // fleet user id
	EditID    string // trip being edited; empty for a new trip
	RouteName string
	Driver    string
	Bus       string
	StartTime string
	EndTime   string
	TotalKm   string

	Stops         []stops.Stop `gorm:"serializer:json"`
	RoutePolyline string

	// Decoded path as a WKB LineString, empty until computed.
	Geometry []byte `gorm:"type:bytea"`

	State      string
	Generation uint64
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
