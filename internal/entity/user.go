package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// User is a reviewer account that clearance requests can be assigned to.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Organization string    `json:"organization"`
	Active       bool      `json:"active"`
}

// Notification is a message delivered to a user's inbox.
type Notification struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Severity  constants.Severity `json:"severity"`
	Read      bool               `json:"read"`
	CreatedAt time.Time          `json:"created_at"`
}
