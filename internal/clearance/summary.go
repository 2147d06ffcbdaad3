package clearance

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/verification"
)

// TrackStatus is what happened to one clearance track.
type TrackStatus string

const (
	TrackCreated       TrackStatus = "created"
	TrackSkipped       TrackStatus = "skipped" // an open request already exists
	TrackNotApplicable TrackStatus = "not_applicable"
	TrackFailed        TrackStatus = "failed"
)

// History actions written by the orchestrator.
const (
	ActionHPGRequested       = "HPG_CLEARANCE_REQUESTED"
	ActionInsuranceRequested = "INSURANCE_CLEARANCE_REQUESTED"
	ActionInsuranceApproved  = "INSURANCE_AUTO_VERIFIED"
	ActionSubmitted          = "CLEARANCE_SUBMITTED"
)

// TrackResult reports one track of a submission.
type TrackResult struct {
	Type          constants.RequestType   `json:"type"`
	Status        TrackStatus             `json:"status"`
	RequestID     *uuid.UUID              `json:"request_id,omitempty"`
	RequestStatus constants.RequestStatus `json:"request_status,omitempty"`
	AssignedTo    *uuid.UUID              `json:"assigned_to,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	Flagged       bool                    `json:"flagged,omitempty"`
	Match         *registry.MatchResult   `json:"match,omitempty"`
	Verification  *verification.Decision  `json:"-"`
	Identifiers   map[string]*bool        `json:"identifier_diff,omitempty"`
	Prefill       *verification.Prefill   `json:"-"`
	Error         string                  `json:"error,omitempty"`
}

func failed(rt constants.RequestType, err error) TrackResult {
	return TrackResult{Type: rt, Status: TrackFailed, Error: err.Error()}
}

// Summary is the outcome of one ProcessSubmission call.
type Summary struct {
	VehicleID      uuid.UUID        `json:"vehicle_id"`
	Kind           RegistrationKind `json:"registration_kind"`
	Documents      int              `json:"documents"`
	DocumentSource string           `json:"document_source"`
	HPG            TrackResult      `json:"hpg"`
	Insurance      TrackResult      `json:"insurance"`
	Submitted      bool             `json:"submitted"`
}

// Describe renders the consolidated audit line for both tracks.
func (s Summary) Describe() string {
	parts := make([]string, 0, 2)
	for _, t := range []struct {
		label string
		res   TrackResult
	}{{"HPG", s.HPG}, {"Insurance", s.Insurance}} {
		line := fmt.Sprintf("%s: %s", t.label, t.res.Status)
		if t.res.RequestStatus != "" {
			line += fmt.Sprintf(" (%s)", t.res.RequestStatus)
		}
		if t.res.Reason != "" {
			line += " - " + t.res.Reason
		}
		parts = append(parts, line)
	}
	return "Clearance submitted. " + strings.Join(parts, "; ")
}

func (s Summary) created() bool {
	return s.HPG.Status == TrackCreated || s.Insurance.Status == TrackCreated
}

// sent reports whether the vehicle has reached its clearance organizations:
// a request was created now, or every applicable track already has an open
// request from an earlier run.
func (s Summary) sent() bool {
	if s.created() {
		return true
	}
	existing := false
	for _, t := range []TrackResult{s.HPG, s.Insurance} {
		switch t.Status {
		case TrackSkipped:
			existing = true
		case TrackFailed:
			return false
		}
	}
	return existing
}
