package clearance

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

// findAssignee returns the first active reviewer for role, nil when nobody
// is available; the request is then created unassigned.
func (o *Orchestrator) findAssignee(ctx context.Context, role, org string) *uuid.UUID {
	logger := common.LoggerFromContext(ctx, o.logger)
	u, err := o.repos.Users.FindActiveByRole(ctx, role, org)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			logger.Info("clearance.assignee.none", "role", role, "organization", org)
		} else {
			logger.Warn("clearance.assignee.lookup_failed", "role", role, "organization", org, "err", err)
		}
		return nil
	}
	id := u.ID
	return &id
}

func (o *Orchestrator) notify(ctx context.Context, userID *uuid.UUID, title, message string, severity constants.Severity) {
	if userID == nil {
		return
	}
	n := &entity.Notification{UserID: *userID, Title: title, Message: message, Severity: severity}
	if err := o.repos.Notifications.Create(ctx, n); err != nil {
		common.LoggerFromContext(ctx, o.logger).Error("clearance.notify.failed", "user_id", *userID, "title", title, "err", err)
	}
}

func (o *Orchestrator) audit(ctx context.Context, vehicleID uuid.UUID, action, description string, metadata map[string]any) {
	e := &entity.HistoryEntry{
		VehicleID:   vehicleID,
		Action:      action,
		Description: description,
		PerformedBy: o.cfg.RequestedBy,
		Metadata:    encodeMetadata(metadata),
	}
	if err := o.repos.History.Add(ctx, e); err != nil {
		common.LoggerFromContext(ctx, o.logger).Error("clearance.audit.failed", "action", action, "err", err)
	}
}

// create inserts req unless the track already has an open request.
func (o *Orchestrator) create(ctx context.Context, req *entity.ClearanceRequest) (TrackResult, bool) {
	res := TrackResult{Type: req.RequestType, AssignedTo: req.AssignedTo}
	got, created, err := o.repos.Clearances.CreateIfNoOpen(ctx, req)
	if err != nil {
		common.LoggerFromContext(ctx, o.logger).Error("clearance.request.create_failed", "type", req.RequestType, "err", err)
		return failed(req.RequestType, err), false
	}
	id := got.ID
	res.RequestID = &id
	res.RequestStatus = got.Status
	if !created {
		res.Status = TrackSkipped
		res.Reason = "open request already exists"
		res.AssignedTo = got.AssignedTo
		common.LoggerFromContext(ctx, o.logger).Info("clearance.track.skipped", "type", req.RequestType, "request_id", got.ID)
		return res, false
	}
	res.Status = TrackCreated
	common.LoggerFromContext(ctx, o.logger).Info("clearance.track.created", "type", req.RequestType, "request_id", got.ID, "assigned_to", req.AssignedTo)
	return res, true
}

func skippedExisting(req *entity.ClearanceRequest) TrackResult {
	id := req.ID
	return TrackResult{
		Type:          req.RequestType,
		Status:        TrackSkipped,
		RequestID:     &id,
		RequestStatus: req.Status,
		AssignedTo:    req.AssignedTo,
		Reason:        "open request already exists",
	}
}

func encodeMetadata(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

func documentIDs(docs ...*entity.Document) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
