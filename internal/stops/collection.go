// Package stops keeps the ordered list of named stops a route is built from.
//
// Order values are 1-based, dense and contiguous after every operation.
package stops

import (
	"fmt"

	"routedesk/internal/geo"
)

// Field names accepted by Update.
const (
	FieldName      = "name"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// Stop is a named waypoint with its position in the route.
type Stop struct {
	Name      string    `json:"name"`
	Latitude  geo.Input `json:"latitude"`
	Longitude geo.Input `json:"longitude"`
	Order     int       `json:"order"`
}

// Point returns the stop's coordinates if both are usable.
func (s Stop) Point() (geo.Point, bool) {
	return geo.PointOf(s.Latitude, s.Longitude)
}

// Collection is an ordered sequence of stops.
type Collection struct {
	items []Stop
}

// New builds a collection from stops, renumbering them in slice order.
func New(in []Stop) *Collection {
	c := &Collection{items: append([]Stop(nil), in...)}
	c.renumber()
	return c
}

// Len returns the number of stops.
func (c *Collection) Len() int { return len(c.items) }

// Stops returns a copy of the stops in order.
func (c *Collection) Stops() []Stop {
	return append([]Stop(nil), c.items...)
}

// Add appends s with order count+1 and returns the stored stop.
func (c *Collection) Add(s Stop) Stop {
	s.Order = len(c.items) + 1
	c.items = append(c.items, s)
	return s
}

// Update replaces one field of the stop at index.
func (c *Collection) Update(index int, field, value string) error {
	if err := c.check(index); err != nil {
		return err
	}
	switch field {
	case FieldName:
		c.items[index].Name = value
	case FieldLatitude:
		c.items[index].Latitude = geo.Input(value)
	case FieldLongitude:
		c.items[index].Longitude = geo.Input(value)
	default:
		return fmt.Errorf("unknown stop field %q", field)
	}
	return nil
}

// Remove deletes the stop at index and renumbers the rest.
func (c *Collection) Remove(index int) error {
	if err := c.check(index); err != nil {
		return err
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	c.renumber()
	return nil
}

// Move relocates the stop at from to position to and renumbers.
func (c *Collection) Move(from, to int) error {
	if err := c.check(from); err != nil {
		return err
	}
	if err := c.check(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	s := c.items[from]
	c.items = append(c.items[:from], c.items[from+1:]...)
	c.items = append(c.items[:to], append([]Stop{s}, c.items[to:]...)...)
	c.renumber()
	return nil
}

// Points returns the coordinates of every stop in order. invalid lists the
// indexes of stops whose coordinates are not usable.
func (c *Collection) Points() (pts []geo.Point, invalid []int) {
	for i, s := range c.items {
		p, ok := s.Point()
		if !ok {
			invalid = append(invalid, i)
			continue
		}
		pts = append(pts, p)
	}
	return pts, invalid
}

// DefaultName is the label given to a stop that has no address.
func DefaultName(order int) string {
	return fmt.Sprintf("Stop %d", order)
}

func (c *Collection) check(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("stop index %d out of range [0,%d)", index, len(c.items))
	}
	return nil
}

func (c *Collection) renumber() {
	for i := range c.items {
		c.items[i].Order = i + 1
	}
}
