package models

import "github.com/google/uuid"

// User is the caller identity taken from a verified access token.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}
