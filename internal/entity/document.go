package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// Document represents an uploaded file for data transfer between layers.
// VehicleID stays nil until the upload is linked to a registration.
type Document struct {
	ID               uuid.UUID              `json:"id"`
	VehicleID        *uuid.UUID             `json:"vehicle_id,omitempty"`
	Type             constants.DocumentType `json:"type"`
	StoragePath      string                 `json:"storage_path"`
	MIMEType         string                 `json:"mime_type"`
	OriginalFilename string                 `json:"original_filename"`
	UploadedAt       time.Time              `json:"uploaded_at"`
}
