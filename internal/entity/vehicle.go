package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// Vehicle represents a vehicle registration and the identifiers its owner claims.
type Vehicle struct {
	ID               uuid.UUID               `json:"id"`
	PlateNumber      string                  `json:"plate_number"`
	EngineNumber     string                  `json:"engine_number"`
	ChassisNumber    string                  `json:"chassis_number"`
	VIN              string                  `json:"vin"`
	Make             string                  `json:"make"`
	Model            string                  `json:"model"`
	Year             string                  `json:"year"`
	Color            string                  `json:"color"`
	OwnerName        string                  `json:"owner_name"`
	OwnerEmail       string                  `json:"owner_email"`
	RegistrationType string                  `json:"registration_type"`
	OriginType       string                  `json:"origin_type"`
	Purpose          string                  `json:"purpose"`
	PolicyNumber     string                  `json:"policy_number"`
	Status           constants.VehicleStatus `json:"status"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
	// SubmissionAttemptedAt is set when a submission run left the vehicle pending.
	SubmissionAttemptedAt *time.Time `json:"submission_attempted_at,omitempty"`
}

// VehiclePatch carries a partial update; nil fields are left untouched.
type VehiclePatch struct {
	Status       *constants.VehicleStatus `json:"status,omitempty"`
	PlateNumber  *string                  `json:"plate_number,omitempty"`
	PolicyNumber *string                  `json:"policy_number,omitempty"`

	SubmissionAttemptedAt *time.Time `json:"submission_attempted_at,omitempty"`
}
