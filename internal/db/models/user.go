// Package models - user.go defines the User model.
package models

import "time"

// User belongs to one organization. PhoneNumber is optional and only needed
// for SMS rule notifications.
type User struct {
	ID             string
	OrganizationID string
	Email          string
	PhoneNumber    *string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
