package clearance

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
	"github.com/joseph-ayodele/vehicle-clearance/internal/verification"
)

func (o *Orchestrator) runHPG(ctx context.Context, v *entity.Vehicle, p plan) TrackResult {
	logger := common.LoggerFromContext(ctx, o.logger)
	if !p.needsHPG() {
		reason := fmt.Sprintf("no %s document uploaded", describeDocs(p.hpgRequired()))
		logger.Info("clearance.track.skipped", "type", constants.RequestHPG, "reason", reason)
		return TrackResult{Type: constants.RequestHPG, Status: TrackNotApplicable, Reason: reason}
	}
	if existing, err := o.openRequest(ctx, v.ID, constants.RequestHPG); err != nil {
		logger.Warn("clearance.hpg.precheck_failed", "err", err)
	} else if existing != nil {
		logger.Info("clearance.track.skipped", "type", constants.RequestHPG, "request_id", existing.ID)
		return skippedExisting(existing)
	}

	// phase 1: identifiers for the reviewer
	claim := verification.ClaimFor(v)
	var (
		fields parse.Fields
		diff   map[string]*bool
		source = "claimed"
	)
	if p.kind == KindTransfer && p.orcr != nil {
		read := o.reader.Read(ctx, *p.orcr, constants.DocRegistrationCert)
		fields, source = read.Fields, "ocr"
		diff = DiffIdentifiers(claim, fields)
	} else {
		fields = StageClaim(v)
	}

	notes := []string{fmt.Sprintf("HPG clearance for %s registration. Physical inspection required.", p.kind)}
	var match *registry.MatchResult
	if o.registries.HPG != nil {
		m, err := o.registries.HPG.Lookup(ctx, verification.LookupClaim(claim, fields))
		if err != nil {
			logger.Warn("clearance.hpg.lookup_failed", "err", err)
			notes = append(notes, "HPG hot-list check unavailable.")
		} else {
			match = &m
		}
	}
	flagged := match != nil && match.Flagged()
	if flagged {
		notes = append(notes, "WARNING: HPG hot-list match. "+match.Message)
	}
	if mismatched := mismatches(diff); len(mismatched) > 0 {
		notes = append(notes, "Identifier mismatch against OR/CR: "+strings.Join(mismatched, ", "))
	}

	prefill := o.engine.PrefillHPG(fields)
	assignee := o.findAssignee(ctx, o.cfg.HPGReviewerRole, o.cfg.HPGOrganization)
	req := &entity.ClearanceRequest{
		VehicleID:   v.ID,
		RequestType: constants.RequestHPG,
		Status:      constants.RequestPending,
		AssignedTo:  assignee,
		RequestedBy: o.cfg.RequestedBy,
		Purpose:     purpose(v, p.kind),
		Notes:       strings.Join(notes, "\n"),
		DocumentIDs: documentIDs(p.hpgDocs...),
		Metadata: encodeMetadata(map[string]any{
			"registrationKind": p.kind,
			"fieldSource":      source,
			"prefill":          prefill,
			"identifierDiff":   diff,
			"hpgMatch":         match,
		}),
	}

	res, created := o.create(ctx, req)
	res.Match, res.Flagged, res.Identifiers, res.Prefill = match, flagged, diff, &prefill
	if !created {
		return res
	}

	// HPG is never auto-approved; the staged form waits for the reviewer.
	if _, err := o.repos.Verifications.UpdateStatus(ctx, repository.VerificationUpdate{
		VehicleID: v.ID,
		Category:  constants.CategoryHPG,
		Status:    prefill.Status,
		Note:      prefill.Note,
		Metadata: encodeMetadata(map[string]any{
			"requestId": res.RequestID,
			"prefill":   prefill,
			"hpgMatch":  match,
		}),
	}); err != nil {
		logger.Error("clearance.hpg.verification_persist_failed", "err", err)
	}

	o.audit(ctx, v.ID, ActionHPGRequested, "HPG clearance requested", map[string]any{
		"requestId": res.RequestID,
		"kind":      p.kind,
		"flagged":   flagged,
	})
	o.notify(ctx, assignee, "New HPG clearance request",
		fmt.Sprintf("Vehicle %s needs HPG clearance (%s registration).", label(v), p.kind), constants.SeverityMedium)
	if flagged {
		o.notify(ctx, assignee, "HPG hot-list match",
			fmt.Sprintf("Vehicle %s matched the HPG hot-list: %s", label(v), match.Message), constants.SeverityUrgent)
	}
	return res
}

// DiffIdentifiers compares claimed identifiers with those read from a
// document. A nil entry means one side was missing and nothing could be compared.
func DiffIdentifiers(claim registry.Claim, f parse.Fields) map[string]*bool {
	cmp := func(claimed, extracted string, norm func(string) string) *bool {
		c, e := norm(claimed), norm(extracted)
		if c == "" || e == "" {
			return nil
		}
		eq := c == e
		return &eq
	}
	return map[string]*bool{
		string(parse.FieldPlateNumber):   cmp(claim.PlateNumber, f.Value(parse.FieldPlateNumber), registry.NormalizePlate),
		string(parse.FieldEngineNumber):  cmp(claim.EngineNumber, f.Value(parse.FieldEngineNumber), registry.NormalizeIdentifier),
		string(parse.FieldChassisNumber): cmp(claim.ChassisNumber, f.Value(parse.FieldChassisNumber), registry.NormalizeIdentifier),
		string(parse.FieldVIN):           cmp(claim.VIN, f.Value(parse.FieldVIN), registry.NormalizeIdentifier),
	}
}

func mismatches(diff map[string]*bool) []string {
	var out []string
	for _, k := range []parse.Field{parse.FieldPlateNumber, parse.FieldEngineNumber, parse.FieldChassisNumber, parse.FieldVIN} {
		if eq := diff[string(k)]; eq != nil && !*eq {
			out = append(out, string(k))
		}
	}
	return out
}

// StageClaim presents a new registration's claimed identifiers as if they
// had been extracted, since no earlier document exists to read them from.
func StageClaim(v *entity.Vehicle) parse.Fields {
	var f parse.Fields
	for k, val := range map[parse.Field]string{
		parse.FieldPlateNumber:   v.PlateNumber,
		parse.FieldEngineNumber:  v.EngineNumber,
		parse.FieldChassisNumber: v.ChassisNumber,
		parse.FieldVIN:           v.VIN,
		parse.FieldMake:          v.Make,
		parse.FieldModel:         v.Model,
		parse.FieldYear:          v.Year,
		parse.FieldColor:         v.Color,
		parse.FieldOwnerName:     v.OwnerName,
	} {
		if val != "" {
			f.Set(k, val)
		}
	}
	return f
}

func purpose(v *entity.Vehicle, kind RegistrationKind) string {
	if v.Purpose != "" {
		return v.Purpose
	}
	if kind == KindTransfer {
		return "Transfer of ownership"
	}
	return "New registration"
}

func label(v *entity.Vehicle) string {
	if v.PlateNumber != "" {
		return v.PlateNumber
	}
	return v.ID.String()
}
