package models

import "time"

// Roles and statuses used by the fleet API.
const (
	RoleAdmin     = "admin"
	RoleDriver    = "driver"
	RolePassenger = "passenger"

	StatusApproved = "approved"
	StatusPending  = "pending"
)

type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"` // "admin", "driver", "passenger"
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credentials are forwarded untouched to the fleet API login.
type Credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the fleet API's answer to a login.
type LoginResponse struct {
	Token string `json:"token"`
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// StatusUpdate changes a user's approval status.
type StatusUpdate struct {
	Status string `json:"status"`
}
