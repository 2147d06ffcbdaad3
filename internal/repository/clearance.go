package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var clearanceColumns = []string{
	"id", "vehicle_id", "request_type", "status", "assigned_to", "requested_by", "purpose", "notes",
	"document_ids", "metadata", "created_at", "updated_at",
}

// openRequest matches the partial unique index predicate verbatim so
// ON CONFLICT can infer it.
const openRequest = "status NOT IN ('REJECTED', 'COMPLETED')"

// clearanceRepository implements ClearanceRepository
type clearanceRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewClearanceRepository creates a new clearance request repository
func NewClearanceRepository(store *SQLStore, logger *slog.Logger) ClearanceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &clearanceRepository{store: store, logger: logger}
}

func prepareClearance(r *entity.ClearanceRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = constants.RequestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.CreatedAt
	if r.DocumentIDs == nil {
		r.DocumentIDs = []uuid.UUID{}
	}
	return validateClearance(r)
}

func (r *clearanceRepository) insert(req *entity.ClearanceRequest) (*entsql.InsertBuilder, error) {
	docs, err := json.Marshal(req.DocumentIDs)
	if err != nil {
		return nil, err
	}
	return r.store.builder().Insert("clearance_requests").Columns(clearanceColumns...).Values(
		req.ID, req.VehicleID, string(req.RequestType), string(req.Status), nullableUUID(req.AssignedTo),
		req.RequestedBy, req.Purpose, req.Notes, string(docs), jsonArg(req.Metadata), req.CreatedAt, req.UpdatedAt,
	), nil
}

func (r *clearanceRepository) Create(ctx context.Context, req *entity.ClearanceRequest) error {
	if err := prepareClearance(req); err != nil {
		return err
	}
	ins, err := r.insert(req)
	if err != nil {
		return err
	}
	q, args := ins.Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("open %s request for vehicle %s: %w", req.RequestType, req.VehicleID, common.ErrConflict)
		}
		r.logger.Error("failed to create clearance request", "vehicle_id", req.VehicleID, "error", err)
		return err
	}
	return nil
}

func (r *clearanceRepository) CreateIfNoOpen(ctx context.Context, req *entity.ClearanceRequest) (*entity.ClearanceRequest, bool, error) {
	if err := prepareClearance(req); err != nil {
		return nil, false, err
	}
	ins, err := r.insert(req)
	if err != nil {
		return nil, false, err
	}
	q, args := ins.OnConflict(
		entsql.ConflictColumns("vehicle_id", "request_type"),
		entsql.ConflictWhere(entsql.ExprP(openRequest)),
		entsql.DoNothing(),
	).Query()
	res, err := r.store.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to create clearance request", "vehicle_id", req.VehicleID, "type", req.RequestType, "error", err)
		return nil, false, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return req, true, nil
	}

	existing, err := r.findOpen(ctx, req.VehicleID, req.RequestType)
	if err != nil {
		r.logger.Error("failed to load open clearance request", "vehicle_id", req.VehicleID, "type", req.RequestType, "error", err)
		return nil, false, err
	}
	return existing, false, nil
}

func (r *clearanceRepository) findOpen(ctx context.Context, vehicleID uuid.UUID, rt constants.RequestType) (*entity.ClearanceRequest, error) {
	b := r.store.builder()
	q, args := b.Select(clearanceColumns...).From(b.Table("clearance_requests")).
		Where(entsql.And(
			entsql.EQ("vehicle_id", vehicleID),
			entsql.EQ("request_type", string(rt)),
			entsql.ExprP(openRequest),
		)).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	return first(rows, scanClearance, fmt.Sprintf("open %s request for vehicle %s", rt, vehicleID))
}

func (r *clearanceRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.ClearanceRequest, error) {
	return r.List(ctx, ClearanceFilter{VehicleID: &vehicleID})
}

func (r *clearanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.RequestStatus, details entity.StatusDetails) (*entity.ClearanceRequest, error) {
	var updated *entity.ClearanceRequest
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		b := r.store.builder()
		q, args := b.Select(clearanceColumns...).From(b.Table("clearance_requests")).Where(entsql.EQ("id", id)).Query()
		rows, err := queryRows(ctx, tx, q, args)
		if err != nil {
			return err
		}
		cur, err := first(rows, scanClearance, fmt.Sprintf("clearance request %s", id))
		if err != nil {
			return err
		}

		applyStatus(cur, status, details, now())
		q, args = b.Update("clearance_requests").
			Set("status", string(cur.Status)).
			Set("notes", cur.Notes).
			Set("metadata", jsonArg(cur.Metadata)).
			Set("updated_at", cur.UpdatedAt).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := execute(ctx, tx, q, args); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("reopening clearance request %s: %w", id, common.ErrConflict)
			}
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		r.logger.Error("failed to update clearance request status", "request_id", id, "status", status, "error", err)
		return nil, err
	}
	return updated, nil
}

func (r *clearanceRepository) List(ctx context.Context, f ClearanceFilter) ([]*entity.ClearanceRequest, error) {
	b := r.store.builder()
	var preds []*entsql.Predicate
	if f.VehicleID != nil {
		preds = append(preds, entsql.EQ("vehicle_id", *f.VehicleID))
	}
	if f.RequestType != "" {
		preds = append(preds, entsql.EQ("request_type", string(f.RequestType)))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	if f.From != nil {
		preds = append(preds, entsql.GTE("created_at", f.From.UTC()))
	}
	if f.To != nil {
		preds = append(preds, entsql.LTE("created_at", f.To.UTC()))
	}
	sel := b.Select(clearanceColumns...).From(b.Table("clearance_requests")).OrderBy(entsql.Asc("created_at"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	q, args := sel.Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list clearance requests", "error", err)
		return nil, err
	}
	return collect(rows, scanClearance)
}

// applyStatus moves req to status, replacing notes when given and merging metadata keys.
func applyStatus(req *entity.ClearanceRequest, status constants.RequestStatus, details entity.StatusDetails, at time.Time) {
	req.Status = status
	if details.Notes != "" {
		req.Notes = details.Notes
	}
	if len(details.Metadata) > 0 {
		merged := map[string]any{}
		if len(req.Metadata) > 0 {
			_ = json.Unmarshal(req.Metadata, &merged)
		}
		maps.Copy(merged, details.Metadata)
		if b, err := json.Marshal(merged); err == nil {
			req.Metadata = b
		}
	}
	req.UpdatedAt = at
}

func scanClearance(rows *entsql.Rows) (*entity.ClearanceRequest, error) {
	var (
		c               entity.ClearanceRequest
		reqType, status string
		assigned        uuid.NullUUID
		docs, metadata  []byte
	)
	if err := rows.Scan(
		&c.ID, &c.VehicleID, &reqType, &status, &assigned, &c.RequestedBy, &c.Purpose, &c.Notes,
		&docs, &metadata, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.RequestType = constants.RequestType(reqType)
	c.Status = constants.RequestStatus(status)
	c.AssignedTo = uuidPtr(assigned)
	c.DocumentIDs = []uuid.UUID{}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &c.DocumentIDs); err != nil {
			return nil, fmt.Errorf("decode document_ids: %w", err)
		}
	}
	c.Metadata = rawJSON(metadata)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
