package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var (
	verificationColumns      = []string{"vehicle_id", "category", "status", "verified_by", "note", "metadata", "updated_at"}
	verificationEventColumns = []string{"id", "vehicle_id", "category", "status", "verified_by", "note", "metadata", "created_at"}
)

// verificationRepository implements VerificationRepository
type verificationRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(store *SQLStore, logger *slog.Logger) VerificationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &verificationRepository{store: store, logger: logger}
}

func validateVerificationUpdate(u VerificationUpdate) error {
	return common.NewValidator().
		Field("category", string(u.Category), common.Required).
		Field("status", string(u.Status), common.OneOf(
			string(constants.VerificationUnverified),
			string(constants.VerificationPending),
			string(constants.VerificationApproved),
			string(constants.VerificationRejected),
		)).
		Error()
}

func (r *verificationRepository) UpdateStatus(ctx context.Context, u VerificationUpdate) (*entity.Verification, error) {
	if err := validateVerificationUpdate(u); err != nil {
		return nil, err
	}
	at := now()
	v := &entity.Verification{
		VehicleID:  u.VehicleID,
		Category:   u.Category,
		Status:     u.Status,
		VerifiedBy: u.VerifiedBy,
		Note:       u.Note,
		Metadata:   rawJSON(u.Metadata),
		UpdatedAt:  at,
	}
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		b := r.store.builder()
		q, args := b.Insert("verifications").Columns(verificationColumns...).Values(
			v.VehicleID, string(v.Category), string(v.Status), nullableString(v.VerifiedBy), v.Note, jsonArg(v.Metadata), v.UpdatedAt,
		).OnConflict(
			entsql.ConflictColumns("vehicle_id", "category"),
			entsql.ResolveWithNewValues(),
		).Query()
		if _, err := execute(ctx, tx, q, args); err != nil {
			return err
		}
		q, args = b.Insert("verification_events").Columns(verificationEventColumns...).Values(
			uuid.New(), v.VehicleID, string(v.Category), string(v.Status), nullableString(v.VerifiedBy), v.Note, jsonArg(v.Metadata), at,
		).Query()
		_, err := execute(ctx, tx, q, args)
		return err
	})
	if err != nil {
		r.logger.Error("failed to update verification status", "vehicle_id", u.VehicleID, "category", u.Category, "error", err)
		return nil, err
	}
	return v, nil
}

func (r *verificationRepository) Get(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) (*entity.Verification, error) {
	b := r.store.builder()
	q, args := b.Select(verificationColumns...).From(b.Table("verifications")).
		Where(entsql.And(entsql.EQ("vehicle_id", vehicleID), entsql.EQ("category", string(category)))).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get verification", "vehicle_id", vehicleID, "category", category, "error", err)
		return nil, err
	}
	return first(rows, scanVerification, fmt.Sprintf("%s verification for vehicle %s", category, vehicleID))
}

func (r *verificationRepository) History(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) ([]*entity.VerificationEvent, error) {
	b := r.store.builder()
	q, args := b.Select(verificationEventColumns...).From(b.Table("verification_events")).
		Where(entsql.And(entsql.EQ("vehicle_id", vehicleID), entsql.EQ("category", string(category)))).
		OrderBy(entsql.Asc("created_at")).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list verification history", "vehicle_id", vehicleID, "category", category, "error", err)
		return nil, err
	}
	return collect(rows, scanVerificationEvent)
}

func (r *verificationRepository) List(ctx context.Context, vehicleID *uuid.UUID) ([]*entity.Verification, error) {
	b := r.store.builder()
	sel := b.Select(verificationColumns...).From(b.Table("verifications")).
		OrderBy(entsql.Asc("vehicle_id"), entsql.Asc("category"))
	if vehicleID != nil {
		sel.Where(entsql.EQ("vehicle_id", *vehicleID))
	}
	q, args := sel.Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list verifications", "error", err)
		return nil, err
	}
	return collect(rows, scanVerification)
}

func scanVerification(rows *entsql.Rows) (*entity.Verification, error) {
	var (
		v                entity.Verification
		category, status string
		verifiedBy       sql.NullString
		metadata         []byte
	)
	if err := rows.Scan(&v.VehicleID, &category, &status, &verifiedBy, &v.Note, &metadata, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Category = constants.VerificationCategory(category)
	v.Status = constants.VerificationStatus(status)
	v.VerifiedBy = stringPtr(verifiedBy)
	v.Metadata = rawJSON(metadata)
	v.UpdatedAt = v.UpdatedAt.UTC()
	return &v, nil
}

func scanVerificationEvent(rows *entsql.Rows) (*entity.VerificationEvent, error) {
	var (
		e                entity.VerificationEvent
		category, status string
		verifiedBy       sql.NullString
		metadata         []byte
	)
	if err := rows.Scan(&e.ID, &e.VehicleID, &category, &status, &verifiedBy, &e.Note, &metadata, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Category = constants.VerificationCategory(category)
	e.Status = constants.VerificationStatus(status)
	e.VerifiedBy = stringPtr(verifiedBy)
	e.Metadata = rawJSON(metadata)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
