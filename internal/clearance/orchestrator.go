package clearance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
	"github.com/joseph-ayodele/vehicle-clearance/internal/resilience"
	"github.com/joseph-ayodele/vehicle-clearance/internal/verification"
)

// Config tunes document waiting and reviewer assignment.
type Config struct {
	// Wait is the polling schedule for linked documents; Attempts includes the
	// immediate first query.
	Wait           resilience.Backoff
	FallbackWindow time.Duration

	HPGOrganization       string
	InsuranceOrganization string
	HPGReviewerRole       string
	InsuranceReviewerRole string
	RequestedBy           string
}

func DefaultConfig() Config {
	return Config{
		Wait:                  resilience.Backoff{Attempts: 6, Base: 100 * time.Millisecond, Multiplier: 2},
		FallbackWindow:        2 * time.Minute,
		HPGOrganization:       "HPG",
		InsuranceOrganization: "INSURANCE",
		HPGReviewerRole:       "hpg_admin",
		InsuranceReviewerRole: "insurance_verifier",
		RequestedBy:           constants.SystemActor,
	}
}

// ConfigFrom maps the orchestrator section of the process config.
func ConfigFrom(c common.OrchestratorConfig) Config {
	cfg := DefaultConfig()
	if c.WaitAttempts > 0 {
		cfg.Wait.Attempts = c.WaitAttempts + 1
	}
	if c.WaitBaseDelay > 0 {
		cfg.Wait.Base = c.WaitBaseDelay
	}
	if c.FallbackWindow > 0 {
		cfg.FallbackWindow = c.FallbackWindow
	}
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&cfg.HPGOrganization, c.HPGOrganization)
	setIf(&cfg.InsuranceOrganization, c.InsuranceOrg)
	setIf(&cfg.HPGReviewerRole, c.ReviewerRoleHPG)
	setIf(&cfg.InsuranceReviewerRole, c.ReviewerRoleIns)
	setIf(&cfg.RequestedBy, c.RequestedByLabel)
	return cfg
}

// Verifier runs the insurance verification pipeline. It never fails.
type Verifier interface {
	Verify(ctx context.Context, vehicleID uuid.UUID, category constants.VerificationCategory, doc entity.Document) verification.Decision
}

// Orchestrator turns a submitted vehicle into at most one open HPG and one
// open insurance clearance request.
type Orchestrator struct {
	repos      repository.Repositories
	reader     verification.DocumentReader
	registries registry.Registries
	verifier   Verifier
	engine     *verification.Engine
	cfg        Config
	flight     singleflight.Group
	logger     *slog.Logger
}

func NewOrchestrator(
	repos repository.Repositories,
	reader verification.DocumentReader,
	registries registry.Registries,
	verifier Verifier,
	engine *verification.Engine,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = verification.NewEngine(verification.Config{Enabled: true})
	}
	if cfg.FallbackWindow <= 0 {
		cfg.FallbackWindow = 2 * time.Minute
	}
	if cfg.RequestedBy == "" {
		cfg.RequestedBy = constants.SystemActor
	}
	return &Orchestrator{
		repos:      repos,
		reader:     reader,
		registries: registries,
		verifier:   verifier,
		engine:     engine,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessSubmission creates the clearance requests a submitted vehicle needs.
// Track failures are reported in the summary; an error is returned only
// when the vehicle or its documents cannot be loaded. Concurrent calls for
// the same vehicle share one run.
func (o *Orchestrator) ProcessSubmission(ctx context.Context, vehicleID uuid.UUID) (Summary, error) {
	v, err, shared := o.flight.Do(vehicleID.String(), func() (any, error) {
		return o.process(ctx, vehicleID)
	})
	if shared {
		o.logger.Debug("clearance.submission.shared", "vehicle_id", vehicleID)
	}
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

func (o *Orchestrator) process(ctx context.Context, vehicleID uuid.UUID) (Summary, error) {
	ctx, requestID := common.EnsureRequestID(ctx)
	logger := o.logger.With("request_id", requestID, "vehicle_id", vehicleID)
	ctx = common.WithLogger(common.WithVehicleID(ctx, vehicleID), logger)
	start := time.Now()

	vehicle, err := o.repos.Vehicles.Get(ctx, vehicleID)
	if err != nil {
		return Summary{}, common.WrapError(err, "load vehicle")
	}
	docs, source, err := o.waitForDocuments(ctx, vehicle)
	if err != nil {
		return Summary{}, err
	}

	p := newPlan(vehicle, docs)
	sum := Summary{
		VehicleID:      vehicleID,
		Kind:           p.kind,
		Documents:      len(docs),
		DocumentSource: source,
	}

	var g errgroup.Group
	g.Go(func() error {
		sum.HPG = o.guard(ctx, constants.RequestHPG, func() TrackResult { return o.runHPG(ctx, vehicle, p) })
		return nil // a failed track never stops the other
	})
	g.Go(func() error {
		sum.Insurance = o.guard(ctx, constants.RequestInsurance, func() TrackResult { return o.runInsurance(ctx, vehicle, p) })
		return nil
	})
	_ = g.Wait()

	if sum.sent() {
		submitted := constants.VehicleSubmitted
		if _, err := o.repos.Vehicles.Update(ctx, vehicleID, entity.VehiclePatch{Status: &submitted}); err != nil {
			logger.Error("clearance.vehicle.update_failed", "err", err)
		} else {
			sum.Submitted = true
		}
		if sum.created() {
			o.audit(ctx, vehicleID, ActionSubmitted, sum.Describe(), map[string]any{
				"hpg":       sum.HPG,
				"insurance": sum.Insurance,
			})
		}
	}

	logger.Info("clearance.submission.done",
		"hpg", sum.HPG.Status,
		"insurance", sum.Insurance.Status,
		"documents", sum.Documents,
		"document_source", source,
		"submitted", sum.Submitted,
		"took", time.Since(start),
	)
	return sum, nil
}

// guard converts a panicking track into a failed result.
func (o *Orchestrator) guard(ctx context.Context, rt constants.RequestType, fn func() TrackResult) (res TrackResult) {
	defer func() {
		if r := recover(); r != nil {
			common.LoggerFromContext(ctx, o.logger).Error("clearance.track.panic", "type", rt, "panic", r)
			res = failed(rt, fmt.Errorf("track panicked: %v", r))
		}
	}()
	return fn()
}

// openRequest is a cheap pre-check that spares OCR and verification work
// for tracks that already have an open request. CreateIfNoOpen stays the
// authority.
func (o *Orchestrator) openRequest(ctx context.Context, vehicleID uuid.UUID, rt constants.RequestType) (*entity.ClearanceRequest, error) {
	reqs, err := o.repos.Clearances.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if r.RequestType == rt && !r.Status.IsTerminal() {
			return r, nil
		}
	}
	return nil, nil
}

func describeDocs(types []constants.DocumentType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, " or ")
}
