package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// ClearanceRequest is a unit of work routed to HPG or an insurer for one vehicle.
type ClearanceRequest struct {
	ID          uuid.UUID               `json:"id"`
	VehicleID   uuid.UUID               `json:"vehicle_id"`
	RequestType constants.RequestType   `json:"request_type"`
	Status      constants.RequestStatus `json:"status"`
	AssignedTo  *uuid.UUID              `json:"assigned_to,omitempty"`
	RequestedBy string                  `json:"requested_by"`
	Purpose     string                  `json:"purpose"`
	Notes       string                  `json:"notes"`
	DocumentIDs []uuid.UUID             `json:"document_ids"`
	Metadata    json.RawMessage         `json:"metadata,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// StatusDetails accompanies a clearance request status transition.
type StatusDetails struct {
	Notes    string         `json:"notes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
