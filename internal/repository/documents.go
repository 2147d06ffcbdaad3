package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var documentColumns = []string{
	"id", "vehicle_id", "document_type", "storage_path", "mime_type", "original_filename", "uploaded_at",
}

// documentRepository implements DocumentRepository
type documentRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(store *SQLStore, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{store: store, logger: logger}
}

func prepareDocument(d *entity.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = now()
	}
	d.UploadedAt = d.UploadedAt.UTC()
	return validateDocument(d)
}

func (r *documentRepository) Create(ctx context.Context, d *entity.Document) error {
	if err := prepareDocument(d); err != nil {
		return err
	}
	q, args := r.store.builder().Insert("documents").Columns(documentColumns...).Values(
		d.ID, nullableUUID(d.VehicleID), string(d.Type), d.StoragePath, d.MIMEType, d.OriginalFilename, d.UploadedAt,
	).Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create document", "document_id", d.ID, "error", err)
		return err
	}
	return nil
}

func (r *documentRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.Document, error) {
	b := r.store.builder()
	q, args := b.Select(documentColumns...).From(b.Table("documents")).
		Where(entsql.EQ("vehicle_id", vehicleID)).
		OrderBy(entsql.Asc("uploaded_at")).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list documents", "vehicle_id", vehicleID, "error", err)
		return nil, err
	}
	return collect(rows, scanDocument)
}

func (r *documentRepository) ListUploadedBetween(ctx context.Context, from, to time.Time, vehicleID uuid.UUID) ([]*entity.Document, error) {
	b := r.store.builder()
	q, args := b.Select(documentColumns...).From(b.Table("documents")).
		Where(entsql.And(
			entsql.GTE("uploaded_at", from.UTC()),
			entsql.LTE("uploaded_at", to.UTC()),
			entsql.Or(entsql.IsNull("vehicle_id"), entsql.EQ("vehicle_id", vehicleID)),
		)).
		OrderBy(entsql.Asc("uploaded_at")).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list documents in window", "vehicle_id", vehicleID, "error", err)
		return nil, err
	}
	return collect(rows, scanDocument)
}

func (r *documentRepository) LinkVehicle(ctx context.Context, docID, vehicleID uuid.UUID) error {
	q, args := r.store.builder().Update("documents").
		Set("vehicle_id", vehicleID).
		Where(entsql.And(
			entsql.EQ("id", docID),
			entsql.Or(entsql.IsNull("vehicle_id"), entsql.EQ("vehicle_id", vehicleID)),
		)).
		Query()
	res, err := r.store.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to link document", "document_id", docID, "vehicle_id", vehicleID, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// distinguish a missing document from one already linked elsewhere
	b := r.store.builder()
	q, args = b.Select(documentColumns...).From(b.Table("documents")).Where(entsql.EQ("id", docID)).Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		return err
	}
	if _, err := first(rows, scanDocument, fmt.Sprintf("document %s", docID)); err != nil {
		return err
	}
	return fmt.Errorf("document %s is linked to another vehicle: %w", docID, common.ErrConflict)
}

func scanDocument(rows *entsql.Rows) (*entity.Document, error) {
	var (
		d       entity.Document
		vehicle uuid.NullUUID
		docType string
	)
	if err := rows.Scan(&d.ID, &vehicle, &docType, &d.StoragePath, &d.MIMEType, &d.OriginalFilename, &d.UploadedAt); err != nil {
		return nil, err
	}
	d.VehicleID = uuidPtr(vehicle)
	d.Type = constants.DocumentType(docType)
	d.UploadedAt = d.UploadedAt.UTC()
	return &d, nil
}
