package models

type Bus struct {
	ID        string `json:"_id"`
	BusNumber string `json:"busNumber"`
	IsActive  bool   `json:"isActive"`
}
