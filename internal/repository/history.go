package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var historyColumns = []string{"id", "vehicle_id", "action", "description", "performed_by", "metadata", "created_at"}

// historyRepository implements HistoryRepository
type historyRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewHistoryRepository creates a new vehicle history repository
func NewHistoryRepository(store *SQLStore, logger *slog.Logger) HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyRepository{store: store, logger: logger}
}

func prepareHistory(e *entity.HistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return common.NewValidator().Field("action", e.Action, common.Required).Error()
}

func (r *historyRepository) Add(ctx context.Context, e *entity.HistoryEntry) error {
	if err := prepareHistory(e); err != nil {
		return err
	}
	q, args := r.store.builder().Insert("vehicle_history").Columns(historyColumns...).
		Values(e.ID, e.VehicleID, e.Action, e.Description, e.PerformedBy, jsonArg(e.Metadata), e.CreatedAt).
		Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to add history entry", "vehicle_id", e.VehicleID, "action", e.Action, "error", err)
		return err
	}
	return nil
}

func (r *historyRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.HistoryEntry, error) {
	b := r.store.builder()
	q, args := b.Select(historyColumns...).From(b.Table("vehicle_history")).
		Where(entsql.EQ("vehicle_id", vehicleID)).
		OrderBy(entsql.Asc("created_at")).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list history", "vehicle_id", vehicleID, "error", err)
		return nil, err
	}
	return collect(rows, scanHistory)
}

func scanHistory(rows *entsql.Rows) (*entity.HistoryEntry, error) {
	var (
		e        entity.HistoryEntry
		metadata []byte
	)
	if err := rows.Scan(&e.ID, &e.VehicleID, &e.Action, &e.Description, &e.PerformedBy, &metadata, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Metadata = rawJSON(metadata)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
