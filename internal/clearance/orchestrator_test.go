package clearance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/extract"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
	"github.com/joseph-ayodele/vehicle-clearance/internal/resilience"
	"github.com/joseph-ayodele/vehicle-clearance/internal/verification"
)

type stubReader struct {
	mu     sync.Mutex
	fields parse.Fields
	calls  int
}

func (s *stubReader) Read(_ context.Context, doc entity.Document, docType constants.DocumentType) extract.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return extract.Result{DocumentID: doc.ID, Type: docType, Fields: s.fields}
}

type stubVerifier struct {
	mu       sync.Mutex
	decision verification.Decision
	calls    int
}

func (s *stubVerifier) Verify(_ context.Context, _ uuid.UUID, category constants.VerificationCategory, _ entity.Document) verification.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	d := s.decision
	d.Category = category
	return d
}

func (s *stubVerifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubMatcher struct {
	result registry.MatchResult
	err    error
}

func (s stubMatcher) Lookup(context.Context, registry.Claim) (registry.MatchResult, error) {
	return s.result, s.err
}

type harness struct {
	repos    repository.Repositories
	reader   *stubReader
	verifier *stubVerifier
	hpg      *stubMatcher
	orch     *Orchestrator
	hpgAdmin *entity.User
	insurer  *entity.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repos:  repository.NewMemoryStore().Repositories(),
		reader: &stubReader{},
		verifier: &stubVerifier{decision: verification.Decision{
			Status:     constants.VerificationPending,
			Percentage: 40,
			Reasons:    []string{"Score below threshold"},
		}},
		hpg: &stubMatcher{result: registry.MatchResult{Status: constants.RecordNotFound, Message: "no record"}},
	}
	h.hpgAdmin = &entity.User{Email: "hpg@example.com", Name: "HPG Admin", Role: "hpg_admin", Organization: "HPG", Active: true}
	h.insurer = &entity.User{Email: "ins@example.com", Name: "Insurer", Role: "insurance_verifier", Organization: "INSURANCE", Active: true}
	require.NoError(t, h.repos.Users.Create(context.Background(), h.hpgAdmin))
	require.NoError(t, h.repos.Users.Create(context.Background(), h.insurer))

	cfg := DefaultConfig()
	cfg.Wait = resilience.Backoff{Attempts: 2, Base: time.Millisecond, Multiplier: 2}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.orch = NewOrchestrator(h.repos, h.reader, registry.Registries{HPG: h.hpg}, h.verifier,
		verification.NewEngine(verification.Config{Enabled: true}), cfg, logger)
	return h
}

func (h *harness) vehicle(t *testing.T, v *entity.Vehicle) *entity.Vehicle {
	t.Helper()
	if v.PlateNumber == "" {
		v.PlateNumber = "ABC 1234"
	}
	if v.EngineNumber == "" {
		v.EngineNumber = "2NZ1234567"
	}
	if v.ChassisNumber == "" {
		v.ChassisNumber = "NCP93-1234567"
	}
	require.NoError(t, h.repos.Vehicles.Create(context.Background(), v))
	return v
}

func (h *harness) upload(t *testing.T, vehicleID *uuid.UUID, typ constants.DocumentType, name string) *entity.Document {
	t.Helper()
	d := &entity.Document{
		VehicleID:        vehicleID,
		Type:             typ,
		StoragePath:      "/uploads/" + name,
		MIMEType:         "application/pdf",
		OriginalFilename: name,
	}
	require.NoError(t, h.repos.Documents.Create(context.Background(), d))
	return d
}

func (h *harness) requests(t *testing.T, vehicleID uuid.UUID) map[constants.RequestType][]*entity.ClearanceRequest {
	t.Helper()
	reqs, err := h.repos.Clearances.ListByVehicle(context.Background(), vehicleID)
	require.NoError(t, err)
	out := map[constants.RequestType][]*entity.ClearanceRequest{}
	for _, r := range reqs {
		out[r.RequestType] = append(out[r.RequestType], r)
	}
	return out
}

func TestClassifyRegistration(t *testing.T) {
	tests := []struct {
		name string
		v    entity.Vehicle
		want RegistrationKind
	}{
		{"empty", entity.Vehicle{}, KindNew},
		{"transfer type", entity.Vehicle{RegistrationType: "Transfer"}, KindTransfer},
		{"second hand origin", entity.Vehicle{OriginType: "Second Hand"}, KindTransfer},
		{"purpose mentions transfer", entity.Vehicle{Purpose: "transfer of ownership"}, KindTransfer},
		{"brand new", entity.Vehicle{RegistrationType: "brand new"}, KindNew},
		{"type wins over purpose", entity.Vehicle{RegistrationType: "new", Purpose: "transfer"}, KindNew},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegistration(&tt.v))
		})
	}
}

func TestProcessSubmission_NewRegistrationWithoutHPGDocuments(t *testing.T) {
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{RegistrationType: "new"})
	h.upload(t, &v.ID, constants.DocInsuranceCert, "ctpl.pdf")
	// an OR/CR does not open the HPG track for a new registration
	h.upload(t, &v.ID, constants.DocRegistrationCert, "orcr.pdf")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, KindNew, sum.Kind)
	assert.Equal(t, SourceVehicle, sum.DocumentSource)
	assert.Equal(t, TrackNotApplicable, sum.HPG.Status)
	assert.Equal(t, "no owner_id or hpg_clearance document uploaded", sum.HPG.Reason)
	assert.Equal(t, TrackCreated, sum.Insurance.Status)
	assert.True(t, sum.Submitted)

	reqs := h.requests(t, v.ID)
	assert.Empty(t, reqs[constants.RequestHPG])
	require.Len(t, reqs[constants.RequestInsurance], 1)
	ins := reqs[constants.RequestInsurance][0]
	assert.Equal(t, constants.RequestPending, ins.Status)
	assert.Equal(t, h.insurer.ID, *ins.AssignedTo)
	assert.Contains(t, ins.Notes, "Score below threshold")

	got, err := h.repos.Vehicles.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.VehicleSubmitted, got.Status)

	notes, err := h.repos.Notifications.ListByUser(context.Background(), h.insurer.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Insurance verification required", notes[0].Title)
}

func TestProcessSubmission_WindowFallback(t *testing.T) {
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{RegistrationType: "new"})
	id := h.upload(t, nil, constants.DocOwnerID, "license.jpg")
	ins := h.upload(t, nil, constants.DocOther, "my-insurance.pdf")
	stranger := uuid.New()
	other := h.upload(t, &stranger, constants.DocHPGClearance, "other-hpg.pdf")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, SourceWindow, sum.DocumentSource)
	assert.Equal(t, 2, sum.Documents)
	assert.Equal(t, TrackCreated, sum.HPG.Status)
	assert.Equal(t, TrackCreated, sum.Insurance.Status)

	linked, err := h.repos.Documents.ListByVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(linked))
	for _, d := range linked {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{id.ID, ins.ID}, ids)
	assert.NotContains(t, ids, other.ID)
}

func TestProcessSubmission_NoDocuments(t *testing.T) {
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{})

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, SourceNone, sum.DocumentSource)
	assert.Equal(t, TrackNotApplicable, sum.HPG.Status)
	assert.Equal(t, TrackNotApplicable, sum.Insurance.Status)
	assert.False(t, sum.Submitted)

	got, err := h.repos.Vehicles.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.VehiclePendingSubmission, got.Status)
	history, err := h.repos.History.ListByVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessSubmission_UnknownVehicle(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.ProcessSubmission(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestProcessSubmission_Idempotent(t *testing.T) {
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{RegistrationType: "transfer"})
	h.upload(t, &v.ID, constants.DocRegistrationCert, "orcr.pdf")
	h.upload(t, &v.ID, constants.DocInsuranceCert, "ctpl.pdf")

	first, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackCreated, first.HPG.Status)
	assert.Equal(t, TrackCreated, first.Insurance.Status)

	again, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackSkipped, again.HPG.Status)
	assert.Equal(t, TrackSkipped, again.Insurance.Status)
	assert.Equal(t, *first.HPG.RequestID, *again.HPG.RequestID)
	// both organizations already have the vehicle
	assert.True(t, again.Submitted)
	// the pre-check spares a second verification
	assert.Equal(t, 1, h.verifier.Calls())

	reqs := h.requests(t, v.ID)
	assert.Len(t, reqs[constants.RequestHPG], 1)
	assert.Len(t, reqs[constants.RequestInsurance], 1)

	// closing the HPG request lets a new one open
	_, err = h.repos.Clearances.UpdateStatus(context.Background(), *first.HPG.RequestID, constants.RequestRejected, entity.StatusDetails{Notes: "blurry"})
	require.NoError(t, err)
	third, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackCreated, third.HPG.Status)
	assert.Equal(t, TrackSkipped, third.Insurance.Status)
	assert.Len(t, h.requests(t, v.ID)[constants.RequestHPG], 2)
}

func TestProcessSubmission_Concurrent(t *testing.T) {
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{})
	h.upload(t, &v.ID, constants.DocOwnerID, "id.jpg")
	h.upload(t, &v.ID, constants.DocInsuranceCert, "ctpl.pdf")

	// a second orchestrator on the same store does not share the in-process flight
	other := NewOrchestrator(h.repos, h.reader, registry.Registries{HPG: h.hpg}, h.verifier, nil, h.orch.cfg, nil)

	var wg sync.WaitGroup
	for i := range 6 {
		o := h.orch
		if i%2 == 1 {
			o = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.ProcessSubmission(context.Background(), v.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reqs := h.requests(t, v.ID)
	assert.Len(t, reqs[constants.RequestHPG], 1)
	assert.Len(t, reqs[constants.RequestInsurance], 1)
}

func TestProcessSubmission_TransferDiffsIdentifiers(t *testing.T) {
	h := newHarness(t)
	h.reader.fields = parse.NewFields(map[parse.Field]string{
		parse.FieldPlateNumber:   "abc 1234",
		parse.FieldEngineNumber:  "2nz 1234567",
		parse.FieldChassisNumber: "OTHER-999",
	})
	v := h.vehicle(t, &entity.Vehicle{OriginType: "second hand"})
	h.upload(t, &v.ID, constants.DocRegistrationCert, "orcr.pdf")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	require.Equal(t, TrackCreated, sum.HPG.Status)
	assert.Equal(t, KindTransfer, sum.Kind)

	diff := sum.HPG.Identifiers
	require.NotNil(t, diff["engineNumber"])
	assert.True(t, *diff["engineNumber"])
	require.NotNil(t, diff["chassisNumber"])
	assert.False(t, *diff["chassisNumber"])
	assert.Nil(t, diff["vin"])

	req := h.requests(t, v.ID)[constants.RequestHPG][0]
	assert.Contains(t, req.Notes, "Identifier mismatch against OR/CR: chassisNumber")
	assert.Equal(t, "Transfer of ownership", req.Purpose)
	assert.Equal(t, 50, sum.HPG.Prefill.Completeness)
}

func TestProcessSubmission_FlaggedHPG(t *testing.T) {
	h := newHarness(t)
	h.hpg.result = registry.MatchResult{
		Found:   true,
		Status:  constants.RecordFlagged,
		Record:  &registry.Record{PlateNumber: "ABC 1234", Status: registry.ProblemStolen},
		Message: "Vehicle reported stolen",
	}
	v := h.vehicle(t, &entity.Vehicle{})
	h.upload(t, &v.ID, constants.DocHPGClearance, "hpg.pdf")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	require.Equal(t, TrackCreated, sum.HPG.Status)
	assert.True(t, sum.HPG.Flagged)

	req := h.requests(t, v.ID)[constants.RequestHPG][0]
	assert.Contains(t, req.Notes, "WARNING: HPG hot-list match. Vehicle reported stolen")
	assert.Equal(t, h.hpgAdmin.ID, *req.AssignedTo)

	notes, err := h.repos.Notifications.ListByUser(context.Background(), h.hpgAdmin.ID)
	require.NoError(t, err)
	severities := make([]constants.Severity, 0, len(notes))
	for _, n := range notes {
		severities = append(severities, n.Severity)
	}
	assert.ElementsMatch(t, []constants.Severity{constants.SeverityMedium, constants.SeverityUrgent}, severities)
}

func TestProcessSubmission_HPGLookupFailureStillCreates(t *testing.T) {
	h := newHarness(t)
	h.hpg.err = errors.New("registry down")
	v := h.vehicle(t, &entity.Vehicle{})
	h.upload(t, &v.ID, constants.DocOwnerID, "id.jpg")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackCreated, sum.HPG.Status)
	assert.False(t, sum.HPG.Flagged)
	assert.Nil(t, sum.HPG.Match)
	req := h.requests(t, v.ID)[constants.RequestHPG][0]
	assert.Contains(t, req.Notes, "HPG hot-list check unavailable.")
}

func TestProcessSubmission_InsuranceAutoApproved(t *testing.T) {
	h := newHarness(t)
	h.verifier.decision = verification.Decision{
		Status:     constants.VerificationApproved,
		Automated:  true,
		Score:      95,
		MaxScore:   100,
		Percentage: 95,
		Match:      registry.MatchResult{Found: true, Status: constants.RecordValid, CanApprove: true},
	}
	v := h.vehicle(t, &entity.Vehicle{})
	h.upload(t, &v.ID, constants.DocInsuranceCert, "ctpl.pdf")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackCreated, sum.Insurance.Status)
	assert.Equal(t, constants.RequestApproved, sum.Insurance.RequestStatus)
	assert.Equal(t, TrackNotApplicable, sum.HPG.Status)
	assert.True(t, sum.Submitted)

	req := h.requests(t, v.ID)[constants.RequestInsurance][0]
	assert.Equal(t, constants.RequestApproved, req.Status)
	assert.Equal(t, "Auto-verified with score 95%", req.Notes)

	notes, err := h.repos.Notifications.ListByUser(context.Background(), h.insurer.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Insurance auto-verified", notes[0].Title)

	history, err := h.repos.History.ListByVehicle(context.Background(), v.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(history))
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []string{ActionInsuranceRequested, ActionInsuranceApproved, ActionSubmitted}, actions)
}

func TestProcessSubmission_UnassignedWithoutReviewer(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.HPGOrganization = "NOBODY"
	v := h.vehicle(t, &entity.Vehicle{})
	h.upload(t, &v.ID, constants.DocOwnerID, "id.jpg")

	sum, err := h.orch.ProcessSubmission(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackCreated, sum.HPG.Status)
	assert.Nil(t, sum.HPG.AssignedTo)
}

func TestSummaryDescribe(t *testing.T) {
	s := Summary{
		HPG:       TrackResult{Status: TrackNotApplicable, Reason: "no owner_id or hpg_clearance document uploaded"},
		Insurance: TrackResult{Status: TrackCreated, RequestStatus: constants.RequestPending},
	}
	assert.Equal(t,
		"Clearance submitted. HPG: not_applicable - no owner_id or hpg_clearance document uploaded; Insurance: created (PENDING)",
		s.Describe())
}

func TestDiffIdentifiers(t *testing.T) {
	claim := registry.Claim{PlateNumber: "ABC 1234", EngineNumber: "E1"}
	diff := DiffIdentifiers(claim, parse.NewFields(map[parse.Field]string{
		parse.FieldPlateNumber:  "abc  1234",
		parse.FieldEngineNumber: "E2",
	}))
	require.NotNil(t, diff["plateNumber"])
	assert.True(t, *diff["plateNumber"])
	require.NotNil(t, diff["engineNumber"])
	assert.False(t, *diff["engineNumber"])
	assert.Nil(t, diff["chassisNumber"])
	assert.Equal(t, []string{"engineNumber"}, mismatches(diff))
}

func TestProcessSubmission_OpenRequestsCompleteStalledVehicle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{RegistrationType: "transfer"})
	h.upload(t, &v.ID, constants.DocRegistrationCert, "orcr.pdf")
	h.upload(t, &v.ID, constants.DocInsuranceCert, "ctpl.pdf")

	first, err := h.orch.ProcessSubmission(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, first.Submitted)

	// an earlier run created the requests but never moved the vehicle
	pending := constants.VehiclePendingSubmission
	_, err = h.repos.Vehicles.Update(ctx, v.ID, entity.VehiclePatch{Status: &pending})
	require.NoError(t, err)

	again, err := h.orch.ProcessSubmission(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, TrackSkipped, again.HPG.Status)
	assert.Equal(t, TrackSkipped, again.Insurance.Status)
	assert.True(t, again.Submitted)

	got, err := h.repos.Vehicles.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.VehicleSubmitted, got.Status)

	history, err := h.repos.History.ListByVehicle(ctx, v.ID)
	require.NoError(t, err)
	submissions := 0
	for _, e := range history {
		if e.Action == ActionSubmitted {
			submissions++
		}
	}
	assert.Equal(t, 1, submissions)
}

func TestProcessSubmission_SkippedTrackWithFailureStaysPending(t *testing.T) {
	sum := Summary{
		HPG:       TrackResult{Status: TrackSkipped},
		Insurance: TrackResult{Status: TrackFailed},
	}
	assert.False(t, sum.sent())
	sum.Insurance.Status = TrackNotApplicable
	assert.True(t, sum.sent())
	assert.False(t, Summary{HPG: TrackResult{Status: TrackNotApplicable}, Insurance: TrackResult{Status: TrackNotApplicable}}.sent())
}

func TestProcessSubmission_PersistsHPGVerification(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	v := h.vehicle(t, &entity.Vehicle{RegistrationType: "new"})
	h.upload(t, &v.ID, constants.DocOwnerID, "license.jpg")

	sum, err := h.orch.ProcessSubmission(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, TrackCreated, sum.HPG.Status)

	rec, err := h.repos.Verifications.Get(ctx, v.ID, constants.CategoryHPG)
	require.NoError(t, err)
	assert.Equal(t, constants.VerificationPending, rec.Status)
	assert.Nil(t, rec.VerifiedBy)
	assert.Equal(t, verification.InspectionNote, rec.Note)

	var meta struct {
		RequestID uuid.UUID            `json:"requestId"`
		Prefill   verification.Prefill `json:"prefill"`
	}
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, *sum.HPG.RequestID, meta.RequestID)
	assert.Equal(t, "ABC 1234", meta.Prefill.Identifiers["plateNumber"])

	events, err := h.repos.Verifications.History(ctx, v.ID, constants.CategoryHPG)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, constants.VerificationPending, events[0].Status)
	assert.Equal(t, verification.InspectionNote, events[0].Note)

	// a skipped rerun does not append history
	_, err = h.orch.ProcessSubmission(ctx, v.ID)
	require.NoError(t, err)
	events, err = h.repos.Verifications.History(ctx, v.ID, constants.CategoryHPG)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
