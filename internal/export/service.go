package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

const (
	sheetRequests      = "Requests"
	sheetVerifications = "Verifications"
)

// Filter narrows a report. Dates are inclusive calendar days in UTC.
type Filter struct {
	VehicleID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// Service produces XLSX reports of clearance requests and verifications.
type Service struct {
	repos  repository.Repositories
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repos repository.Repositories, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, now: time.Now, logger: logger}
}

// ClearanceReportXLSX returns a workbook with one row per clearance request
// and one per current verification status.
// If only from is provided -> from..today.
// If only to is provided   -> beginning..to.
func (s *Service) ClearanceReportXLSX(ctx context.Context, flt Filter) ([]byte, error) {
	start := time.Now()

	f := Filter{VehicleID: flt.VehicleID}
	if flt.From != nil {
		d := day(*flt.From)
		f.From = &d
	}
	if flt.To != nil {
		d := day(*flt.To)
		f.To = &d
	}
	if f.From != nil && f.To == nil {
		d := day(s.now())
		f.To = &d
	}
	var to *time.Time
	if f.To != nil {
		end := f.To.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	reqs, err := s.repos.Clearances.List(ctx, repository.ClearanceFilter{VehicleID: f.VehicleID, From: f.From, To: to})
	if err != nil {
		return nil, fmt.Errorf("query clearance requests: %w", err)
	}
	vers, err := s.repos.Verifications.List(ctx, f.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("query verifications: %w", err)
	}
	plates := s.plates(ctx)

	x := excelize.NewFile()
	defer x.Close()
	if err := x.SetSheetName("Sheet1", sheetRequests); err != nil {
		return nil, err
	}
	if _, err := x.NewSheet(sheetVerifications); err != nil {
		return nil, err
	}
	x.SetActiveSheet(0)

	writeRow(x, sheetRequests, 1, "Created", "Plate", "Type", "Status", "Assigned To", "Purpose", "Notes", "Documents")
	for i, r := range reqs {
		assigned := ""
		if r.AssignedTo != nil {
			assigned = r.AssignedTo.String()
		}
		writeRow(x, sheetRequests, i+2,
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
			plates(r.VehicleID),
			string(r.RequestType),
			string(r.Status),
			assigned,
			r.Purpose,
			truncate(strings.ReplaceAll(r.Notes, "\n", " "), 200),
			len(r.DocumentIDs),
		)
	}

	writeRow(x, sheetVerifications, 1, "Updated", "Plate", "Category", "Status", "Verified By", "Note")
	for i, v := range vers {
		by := ""
		if v.VerifiedBy != nil {
			by = *v.VerifiedBy
		}
		writeRow(x, sheetVerifications, i+2,
			v.UpdatedAt.UTC().Format("2006-01-02 15:04"),
			plates(v.VehicleID),
			string(v.Category),
			string(v.Status),
			by,
			truncate(v.Note, 200),
		)
	}

	_ = x.SetColWidth(sheetRequests, "A", "A", 17)
	_ = x.SetColWidth(sheetRequests, "B", "D", 14)
	_ = x.SetColWidth(sheetRequests, "E", "E", 38)
	_ = x.SetColWidth(sheetRequests, "F", "F", 24)
	_ = x.SetColWidth(sheetRequests, "G", "G", 60)
	_ = x.SetColWidth(sheetVerifications, "A", "A", 17)
	_ = x.SetColWidth(sheetVerifications, "B", "E", 14)
	_ = x.SetColWidth(sheetVerifications, "F", "F", 60)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"requests", len(reqs),
		"verifications", len(vers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// plates resolves vehicle IDs to plate numbers, falling back to the ID.
func (s *Service) plates(ctx context.Context) func(uuid.UUID) string {
	cache := map[uuid.UUID]string{}
	return func(id uuid.UUID) string {
		if p, ok := cache[id]; ok {
			return p
		}
		p := id.String()
		if v, err := s.repos.Vehicles.Get(ctx, id); err == nil && v.PlateNumber != "" {
			p = v.PlateNumber
		} else if err != nil {
			s.logger.Debug("export.vehicle.lookup_failed", "vehicle_id", id, "err", err)
		}
		cache[id] = p
		return p
	}
}

func writeRow(x *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = x.SetCellValue(sheet, cell, v)
	}
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
