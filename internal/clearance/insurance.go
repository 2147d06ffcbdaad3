package clearance

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

func (o *Orchestrator) runInsurance(ctx context.Context, v *entity.Vehicle, p plan) TrackResult {
	logger := common.LoggerFromContext(ctx, o.logger)
	if !p.needsInsurance() {
		reason := fmt.Sprintf("no %s document uploaded", constants.DocInsuranceCert)
		logger.Info("clearance.track.skipped", "type", constants.RequestInsurance, "reason", reason)
		return TrackResult{Type: constants.RequestInsurance, Status: TrackNotApplicable, Reason: reason}
	}
	if existing, err := o.openRequest(ctx, v.ID, constants.RequestInsurance); err != nil {
		logger.Warn("clearance.insurance.precheck_failed", "err", err)
	} else if existing != nil {
		logger.Info("clearance.track.skipped", "type", constants.RequestInsurance, "request_id", existing.ID)
		return skippedExisting(existing)
	}

	assignee := o.findAssignee(ctx, o.cfg.InsuranceReviewerRole, o.cfg.InsuranceOrganization)
	d := o.verifier.Verify(ctx, v.ID, constants.CategoryInsurance, *p.insurance)

	notes := "Insurance certificate verification."
	if len(d.Reasons) > 0 {
		notes += " Review: " + strings.Join(d.Reasons, "; ")
	}
	req := &entity.ClearanceRequest{
		VehicleID:   v.ID,
		RequestType: constants.RequestInsurance,
		Status:      constants.RequestPending,
		AssignedTo:  assignee,
		RequestedBy: o.cfg.RequestedBy,
		Purpose:     "Insurance verification",
		Notes:       notes,
		DocumentIDs: documentIDs(p.insurance),
		Metadata: encodeMetadata(map[string]any{
			"verification": d,
		}),
	}

	res, created := o.create(ctx, req)
	res.Verification = &d
	if d.Match.Status != "" {
		m := d.Match
		res.Match = &m
		res.Flagged = m.Flagged()
	}
	if !created {
		return res
	}

	o.audit(ctx, v.ID, ActionInsuranceRequested, "Insurance clearance requested", map[string]any{
		"requestId":  res.RequestID,
		"decision":   d.Status,
		"percentage": d.Percentage,
	})

	if !d.Approved() {
		o.notify(ctx, assignee, "Insurance verification required",
			fmt.Sprintf("Vehicle %s needs manual insurance review: %s", label(v), strings.Join(d.Reasons, "; ")), constants.SeverityMedium)
		return res
	}

	note := fmt.Sprintf("Auto-verified with score %d%%", d.Percentage)
	updated, err := o.repos.Clearances.UpdateStatus(ctx, *res.RequestID, constants.RequestApproved, entity.StatusDetails{
		Notes:    note,
		Metadata: map[string]any{"autoVerified": true, "verifiedBy": constants.SystemActor},
	})
	if err != nil {
		// the request stays PENDING for a reviewer
		logger.Error("clearance.insurance.approve_failed", "request_id", *res.RequestID, "err", err)
		o.notify(ctx, assignee, "Insurance verification required",
			fmt.Sprintf("Vehicle %s passed auto-verification but could not be approved automatically.", label(v)), constants.SeverityMedium)
		return res
	}
	res.RequestStatus = updated.Status
	o.notify(ctx, assignee, "Insurance auto-verified",
		fmt.Sprintf("Insurance for vehicle %s was auto-verified (%d%%).", label(v), d.Percentage), constants.SeverityInfo)
	o.audit(ctx, v.ID, ActionInsuranceApproved, note, map[string]any{
		"requestId": res.RequestID,
		"score":     d.Score,
		"maxScore":  d.MaxScore,
	})
	return res
}
