package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// Verification is the current verification status of a (vehicle, category) pair.
type Verification struct {
	VehicleID  uuid.UUID                      `json:"vehicle_id"`
	Category   constants.VerificationCategory `json:"category"`
	Status     constants.VerificationStatus   `json:"status"`
	VerifiedBy *string                        `json:"verified_by,omitempty"`
	Note       string                         `json:"note"`
	Metadata   json.RawMessage                `json:"metadata,omitempty"`
	UpdatedAt  time.Time                      `json:"updated_at"`
}

// VerificationEvent is one append-only entry in a verification's history.
type VerificationEvent struct {
	ID         uuid.UUID                      `json:"id"`
	VehicleID  uuid.UUID                      `json:"vehicle_id"`
	Category   constants.VerificationCategory `json:"category"`
	Status     constants.VerificationStatus   `json:"status"`
	VerifiedBy *string                        `json:"verified_by,omitempty"`
	Note       string                         `json:"note"`
	Metadata   json.RawMessage                `json:"metadata,omitempty"`
	CreatedAt  time.Time                      `json:"created_at"`
}
