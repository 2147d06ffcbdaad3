package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is an append-only audit record for a vehicle.
type HistoryEntry struct {
	ID          uuid.UUID       `json:"id"`
	VehicleID   uuid.UUID       `json:"vehicle_id"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	PerformedBy string          `json:"performed_by"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
