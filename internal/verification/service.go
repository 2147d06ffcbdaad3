package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/extract"
	"github.com/joseph-ayodele/vehicle-clearance/internal/fraud"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

// DocumentReader turns a stored document into text and fields.
type DocumentReader interface {
	Read(ctx context.Context, doc entity.Document, docType constants.DocumentType) extract.Result
}

// Service runs the full verification pipeline for one document:
// extract -> parse -> match -> score -> decide -> persist.
type Service struct {
	reader        DocumentReader
	registries    registry.Registries
	analyzer      *fraud.Analyzer
	engine        *Engine
	vehicles      repository.VehicleRepository
	verifications repository.VerificationRepository
	now           func() time.Time
	logger        *slog.Logger
}

type Option func(*Service)

// WithClock sets the clock used for the expiry check.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(
	reader DocumentReader,
	registries registry.Registries,
	analyzer *fraud.Analyzer,
	engine *Engine,
	vehicles repository.VehicleRepository,
	verifications repository.VerificationRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		analyzer = fraud.NewAnalyzer()
	}
	if engine == nil {
		engine = NewEngine(Config{Enabled: true})
	}
	s := &Service{
		reader:        reader,
		registries:    registries,
		analyzer:      analyzer,
		engine:        engine,
		vehicles:      vehicles,
		verifications: verifications,
		now:           time.Now,
		logger:        logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Engine() *Engine { return s.engine }

// Verify never fails: any error or panic inside the pipeline becomes a
// PENDING decision with confidence 0 and the error as its reason. The
// decision is returned even when persisting it fails.
func (s *Service) Verify(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory, doc entity.Document) (d Decision) {
	logger := common.LoggerFromContext(ctx, s.logger).With("vehicle_id", vehicleID, "category", category, "document_id", doc.ID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d = Failed(category, fmt.Errorf("verification panicked: %v", r))
			logger.Error("verification.panic", "panic", r)
		}
		s.persist(ctx, logger, vehicleID, d)
	}()

	d, err := s.run(ctx, logger, vehicleID, category, doc)
	if err != nil {
		logger.Error("verification.failed", "err", err)
		return Failed(category, err)
	}
	logger.Info("verification.decide.ok",
		"status", d.Status,
		"percentage", d.Percentage,
		"match", d.Match.Status,
		"fraud_score", d.Fraud.Score,
		"reasons", d.Reasons,
		"took", time.Since(start),
	)
	return d
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, vehicleID uuid.UUID, category constants.VerificationCategory, doc entity.Document) (Decision, error) {
	docType, err := documentTypeFor(category)
	if err != nil {
		return Decision{}, err
	}
	matcher := s.registries.For(category)
	if matcher == nil {
		return Decision{}, fmt.Errorf("no %s registry configured", category)
	}
	vehicle, err := s.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return Decision{}, fmt.Errorf("load vehicle: %w", err)
	}

	read := s.reader.Read(ctx, doc, docType)
	claim := ClaimFor(vehicle)

	match, err := matcher.Lookup(ctx, LookupClaim(claim, read.Fields))
	if err != nil {
		// the track continues without the registry check
		logger.Warn("verification.lookup.failed", "err", err)
		match = registry.MatchResult{Message: err.Error()}
	}

	analysis := s.analyzer.Analyze(category, read.Fields, match)
	return s.engine.Decide(Input{
		Category:    category,
		Fields:      read.Fields,
		Match:       match,
		Fraud:       analysis,
		ExpiryValid: ExpiryValid(read.Fields, match, s.now()),
		Claim:       claim,
	}), nil
}

func (s *Service) persist(ctx context.Context, logger *slog.Logger, vehicleID uuid.UUID, d Decision) {
	if s.verifications == nil {
		return
	}
	u := repository.VerificationUpdate{
		VehicleID: vehicleID,
		Category:  d.Category,
		Status:    d.Status,
		Note:      strings.Join(d.Reasons, "; "),
	}
	if d.Approved() {
		by := constants.SystemActor
		u.VerifiedBy = &by
		u.Note = fmt.Sprintf("Auto-verified with score %d%%", d.Percentage)
	}
	if meta, err := json.Marshal(d); err == nil {
		u.Metadata = meta
	} else {
		logger.Warn("verification.metadata.encode_failed", "err", err)
	}
	if _, err := s.verifications.UpdateStatus(ctx, u); err != nil {
		logger.Error("verification.persist.failed", "status", d.Status, "err", err)
	}
}

func documentTypeFor(category constants.VerificationCategory) (constants.DocumentType, error) {
	switch category {
	case constants.CategoryInsurance:
		return constants.DocInsuranceCert, nil
	case constants.CategoryEmission:
		return constants.DocEmissionCert, nil
	default:
		return "", fmt.Errorf("%w: %q cannot be auto-verified", common.ErrInvalidInput, category)
	}
}

// ClaimFor returns the identifiers the owner claimed for v.
func ClaimFor(v *entity.Vehicle) registry.Claim {
	return registry.Claim{
		PlateNumber:   v.PlateNumber,
		PolicyNumber:  v.PolicyNumber,
		EngineNumber:  v.EngineNumber,
		ChassisNumber: v.ChassisNumber,
		VIN:           v.VIN,
	}
}

// LookupClaim is the claim sent to a registry: the vehicle's identifiers
// with gaps filled from the document. The document's policy number wins.
func LookupClaim(claim registry.Claim, f parse.Fields) registry.Claim {
	fill := func(dst *string, k parse.Field) {
		if *dst == "" {
			*dst = f.Value(k)
		}
	}
	if p := f.Value(parse.FieldPolicyNumber); p != "" {
		claim.PolicyNumber = p
	}
	fill(&claim.PlateNumber, parse.FieldPlateNumber)
	fill(&claim.EngineNumber, parse.FieldEngineNumber)
	fill(&claim.ChassisNumber, parse.FieldChassisNumber)
	fill(&claim.VIN, parse.FieldVIN)
	return claim
}

// ExpiryValid reports whether the document is still valid today. The
// document's own expiry date is used when it parses, else the registry
// record's. With neither the document cannot be shown valid.
func ExpiryValid(f parse.Fields, match registry.MatchResult, now time.Time) bool {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t, ok := fraud.ParseDate(f.Value(parse.FieldExpiryDate)); ok {
		return !t.Before(today)
	}
	if match.Record != nil {
		if t, ok := match.Record.Expiry(); ok {
			return !t.Before(today)
		}
	}
	return false
}
