package model

import "time"

// Tenant represents one restaurant account registered in the control plane.
type Tenant struct {
	ID           int64     `json:"admin_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Datastore    string    `json:"-"` // isolated database holding the restaurant's records
	CreatedAt    time.Time `json:"created_at"`
}
