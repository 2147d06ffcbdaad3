package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var vehicleColumns = []string{
	"id", "plate_number", "engine_number", "chassis_number", "vin", "make", "model", "year", "color",
	"owner_name", "owner_email", "registration_type", "origin_type", "purpose", "policy_number",
	"status", "created_at", "updated_at", "submission_attempted_at",
}

// vehicleRepository implements VehicleRepository
type vehicleRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(store *SQLStore, logger *slog.Logger) VehicleRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &vehicleRepository{store: store, logger: logger}
}

func prepareVehicle(v *entity.Vehicle) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = constants.VehiclePendingSubmission
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.CreatedAt
	return validateVehicle(v)
}

func (r *vehicleRepository) Create(ctx context.Context, v *entity.Vehicle) error {
	if err := prepareVehicle(v); err != nil {
		return err
	}
	q, args := r.store.builder().Insert("vehicles").Columns(vehicleColumns...).Values(
		v.ID, v.PlateNumber, v.EngineNumber, v.ChassisNumber, v.VIN, v.Make, v.Model, v.Year, v.Color,
		v.OwnerName, v.OwnerEmail, v.RegistrationType, v.OriginType, v.Purpose, v.PolicyNumber,
		string(v.Status), v.CreatedAt, v.UpdatedAt, nullableTime(v.SubmissionAttemptedAt),
	).Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("vehicle %s: %w", v.ID, common.ErrConflict)
		}
		r.logger.Error("failed to create vehicle", "vehicle_id", v.ID, "error", err)
		return err
	}
	r.logger.Debug("created vehicle", "vehicle_id", v.ID)
	return nil
}

func (r *vehicleRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Vehicle, error) {
	b := r.store.builder()
	q, args := b.Select(vehicleColumns...).From(b.Table("vehicles")).Where(entsql.EQ("id", id)).Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get vehicle", "vehicle_id", id, "error", err)
		return nil, err
	}
	return first(rows, scanVehicle, fmt.Sprintf("vehicle %s", id))
}

func (r *vehicleRepository) Update(ctx context.Context, id uuid.UUID, patch entity.VehiclePatch) (*entity.Vehicle, error) {
	upd := r.store.builder().Update("vehicles").Set("updated_at", now()).Where(entsql.EQ("id", id))
	if patch.Status != nil {
		upd.Set("status", string(*patch.Status))
	}
	if patch.PlateNumber != nil {
		upd.Set("plate_number", *patch.PlateNumber)
	}
	if patch.PolicyNumber != nil {
		upd.Set("policy_number", *patch.PolicyNumber)
	}
	if patch.SubmissionAttemptedAt != nil {
		upd.Set("submission_attempted_at", patch.SubmissionAttemptedAt.UTC())
	}
	q, args := upd.Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to update vehicle", "vehicle_id", id, "error", err)
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *vehicleRepository) ListByStatus(ctx context.Context, status constants.VehicleStatus, limit int) ([]*entity.Vehicle, error) {
	b := r.store.builder()
	sel := b.Select(vehicleColumns...).From(b.Table("vehicles")).
		Where(entsql.EQ("status", string(status))).
		OrderBy(entsql.Asc("created_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list vehicles", "status", status, "error", err)
		return nil, err
	}
	return collect(rows, scanVehicle)
}

// ListDueForSubmission returns PENDING_SUBMISSION vehicles never attempted or
// last attempted before attemptedBefore, oldest first.
func (r *vehicleRepository) ListDueForSubmission(ctx context.Context, attemptedBefore time.Time, limit int) ([]*entity.Vehicle, error) {
	b := r.store.builder()
	sel := b.Select(vehicleColumns...).From(b.Table("vehicles")).
		Where(entsql.And(
			entsql.EQ("status", string(constants.VehiclePendingSubmission)),
			entsql.Or(
				entsql.IsNull("submission_attempted_at"),
				entsql.LT("submission_attempted_at", attemptedBefore.UTC()),
			),
		)).
		OrderBy(entsql.Asc("created_at"))
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list vehicles due for submission", "error", err)
		return nil, err
	}
	return collect(rows, scanVehicle)
}

func scanVehicle(rows *entsql.Rows) (*entity.Vehicle, error) {
	var (
		v         entity.Vehicle
		status    string
		attempted sql.NullTime
	)
	if err := rows.Scan(
		&v.ID, &v.PlateNumber, &v.EngineNumber, &v.ChassisNumber, &v.VIN, &v.Make, &v.Model, &v.Year, &v.Color,
		&v.OwnerName, &v.OwnerEmail, &v.RegistrationType, &v.OriginType, &v.Purpose, &v.PolicyNumber,
		&status, &v.CreatedAt, &v.UpdatedAt, &attempted,
	); err != nil {
		return nil, err
	}
	v.Status = constants.VehicleStatus(status)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	v.SubmissionAttemptedAt = timePtr(attempted)
	return &v, nil
}
