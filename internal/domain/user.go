package domain

import "time"

// User is an account identified by a unique, lower-cased email.
// Identity is immutable once created; is_active and is_verified are
// mutated by account-management flows.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsActive    bool
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PublicUser is the externally visible projection of a User. It never
// carries credentials or token material.
type PublicUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsVerified  bool   `json:"is_verified"`
}

// Public returns the public projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
	}
}
