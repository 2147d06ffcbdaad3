package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.Document, error)
	// ListUploadedBetween returns documents uploaded in [from, to] that are
	// unlinked or linked to vehicleID.
	ListUploadedBetween(ctx context.Context, from, to time.Time, vehicleID uuid.UUID) ([]*entity.Document, error)
	// LinkVehicle attaches an unlinked document; relinking to another vehicle is a conflict.
	LinkVehicle(ctx context.Context, docID, vehicleID uuid.UUID) error
}

type VehicleRepository interface {
	Create(ctx context.Context, v *entity.Vehicle) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Vehicle, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.VehiclePatch) (*entity.Vehicle, error)
	ListByStatus(ctx context.Context, status constants.VehicleStatus, limit int) ([]*entity.Vehicle, error)
	// ListDueForSubmission lists pending vehicles not attempted since attemptedBefore.
	ListDueForSubmission(ctx context.Context, attemptedBefore time.Time, limit int) ([]*entity.Vehicle, error)
}

// VerificationUpdate sets the current status of a (vehicle, category) pair
// and appends it to the pair's history.
type VerificationUpdate struct {
	VehicleID  uuid.UUID
	Category   constants.VerificationCategory
	Status     constants.VerificationStatus
	VerifiedBy *string
	Note       string
	Metadata   json.RawMessage
}

type VerificationRepository interface {
	UpdateStatus(ctx context.Context, u VerificationUpdate) (*entity.Verification, error)
	Get(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) (*entity.Verification, error)
	History(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) ([]*entity.VerificationEvent, error)
	// List returns current verifications, all of them when vehicleID is nil.
	List(ctx context.Context, vehicleID *uuid.UUID) ([]*entity.Verification, error)
}

// ClearanceFilter narrows ClearanceRepository.List; zero fields match everything.
type ClearanceFilter struct {
	VehicleID   *uuid.UUID
	RequestType constants.RequestType
	Status      constants.RequestStatus
	From, To    *time.Time
}

type ClearanceRepository interface {
	// Create fails with common.ErrConflict when an open request of the same type exists.
	Create(ctx context.Context, r *entity.ClearanceRequest) error
	// CreateIfNoOpen inserts r unless an open request of the same (vehicle, type)
	// exists, in which case that request is returned with created=false.
	CreateIfNoOpen(ctx context.Context, r *entity.ClearanceRequest) (req *entity.ClearanceRequest, created bool, err error)
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.ClearanceRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RequestStatus, details entity.StatusDetails) (*entity.ClearanceRequest, error)
	List(ctx context.Context, f ClearanceFilter) ([]*entity.ClearanceRequest, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	// FindActiveByRole returns common.ErrNotFound when nobody matches.
	FindActiveByRole(ctx context.Context, role, organization string) (*entity.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Notification, error)
}

type HistoryRepository interface {
	Add(ctx context.Context, e *entity.HistoryEntry) error
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.HistoryEntry, error)
}

// Repositories bundles every collaborator the verification and clearance flows use.
type Repositories struct {
	Documents     DocumentRepository
	Vehicles      VehicleRepository
	Verifications VerificationRepository
	Clearances    ClearanceRepository
	Users         UserRepository
	Notifications NotificationRepository
	History       HistoryRepository
}

// Store is a backing implementation of Repositories.
type Store interface {
	Repositories() Repositories
	Migrate(ctx context.Context) error
	Close()
}
