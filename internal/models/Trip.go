package models

// Trip is a persisted route as the fleet API returns it. Driver and Bus come
// back either populated or as bare ids.
type Trip struct {
	ID            string     `json:"_id"`
	RouteName     string     `json:"routeName"`
	Driver        Ref        `json:"driver"`
	Bus           Ref        `json:"bus"`
	StartTime     string     `json:"startTime,omitempty"`
	EndTime       string     `json:"endTime,omitempty"`
	TotalKm       float64    `json:"totalKm"`
	Stops         []TripStop `json:"stops"`
	RoutePolyline string     `json:"routePolyline,omitempty"`
	IsActive      bool       `json:"isActive"`
}

// TripPayload is the body of a create or update trip call.
type TripPayload struct {
	RouteName     string        `json:"routeName"`
	Driver        string        `json:"driver"`
	Bus           string        `json:"bus"`
	StartTime     string        `json:"startTime"`
	EndTime       string        `json:"endTime"`
	TotalKm       float64       `json:"totalKm"`
	Stops         []PayloadStop `json:"stops"`
	RoutePolyline string        `json:"routePolyline"`
}

// ToggleRequest flips a trip's visibility.
type ToggleRequest struct {
	IsActive bool `json:"isActive"`
}
