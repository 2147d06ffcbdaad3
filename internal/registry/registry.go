// Package registry checks claimed vehicle identifiers against external
// record sets: the insurance database, the emission database and the HPG
// hot-list.
package registry

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// Name identifies one external registry.
type Name string

const (
	Insurance Name = "insurance"
	Emission  Name = "emission"
	HPG       Name = "hpg"
)

// Problem statuses a record in the problem set may carry.
const (
	ProblemFailed     = "FAILED"
	ProblemExpired    = "EXPIRED"
	ProblemTampered   = "TAMPERED"
	ProblemStolen     = "STOLEN"
	ProblemFraudulent = "FRAUDULENT"
)

// Claim is the set of identifiers a document or vehicle asserts.
type Claim struct {
	PlateNumber   string
	PolicyNumber  string
	EngineNumber  string
	ChassisNumber string
	VIN           string
}

// Normalized returns the claim with every identifier normalized. VIN fills
// the chassis number when only one of them is set.
func (c Claim) Normalized() Claim {
	out := Claim{
		PlateNumber:   NormalizePlate(c.PlateNumber),
		PolicyNumber:  NormalizeIdentifier(c.PolicyNumber),
		EngineNumber:  NormalizeIdentifier(c.EngineNumber),
		ChassisNumber: NormalizeIdentifier(c.ChassisNumber),
		VIN:           NormalizeIdentifier(c.VIN),
	}
	if out.ChassisNumber == "" {
		out.ChassisNumber = out.VIN
	}
	if out.VIN == "" {
		out.VIN = out.ChassisNumber
	}
	return out
}

// Empty reports whether the claim carries nothing to look up.
func (c Claim) Empty() bool {
	return c.PlateNumber == "" && c.PolicyNumber == "" && c.EngineNumber == "" && c.ChassisNumber == "" && c.VIN == ""
}

// Record is one row of an external registry.
type Record struct {
	PlateNumber   string `json:"plate_number,omitempty"`
	PolicyNumber  string `json:"policy_number,omitempty"`
	EngineNumber  string `json:"engine_number,omitempty"`
	ChassisNumber string `json:"chassis_number,omitempty"`
	Status        string `json:"status,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
	Provider      string `json:"provider,omitempty"`
	ExpiresOn     string `json:"expires_on,omitempty"` // YYYY-MM-DD
}

// Expiry parses ExpiresOn; ok is false when it is empty or unreadable.
func (r Record) Expiry() (time.Time, bool) {
	if r.ExpiresOn == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, r.ExpiresOn); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MatchResult is the outcome of one lookup.
type MatchResult struct {
	Found      bool                   `json:"found"`
	Status     constants.RecordStatus `json:"status"`
	CanApprove bool                   `json:"can_approve"`
	Record     *Record                `json:"record,omitempty"`
	Message    string                 `json:"message"`
}

// Flagged reports whether the record was in the problem set or marked fraudulent.
func (m MatchResult) Flagged() bool {
	if m.Status == constants.RecordFlagged {
		return true
	}
	return m.Record != nil && strings.EqualFold(m.Record.Status, ProblemFraudulent)
}

// Matcher looks up a claim in one registry.
type Matcher interface {
	Lookup(ctx context.Context, c Claim) (MatchResult, error)
}

// Hits is what a source found for a normalized claim. Problem matches on
// plate, engine or chassis; Valid matches on plate only.
type Hits struct {
	Problem *Record
	Valid   *Record
}

// RecordSource is the storage behind a Matcher.
type RecordSource interface {
	Find(ctx context.Context, c Claim) (Hits, error)
}

// Registries groups the three matchers the clearance flow consults.
type Registries struct {
	Insurance Matcher
	Emission  Matcher
	HPG       Matcher
}

// For returns the matcher used for a verification category, nil when none.
func (r Registries) For(category constants.VerificationCategory) Matcher {
	switch category {
	case constants.CategoryInsurance:
		return r.Insurance
	case constants.CategoryEmission:
		return r.Emission
	case constants.CategoryHPG:
		return r.HPG
	default:
		return nil
	}
}

var (
	reSpaces = regexp.MustCompile(`\s+`)
)

// NormalizePlate uppercases a plate and collapses internal whitespace.
func NormalizePlate(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ToUpper(s), " "))
}

// NormalizeIdentifier uppercases an engine, chassis, VIN or policy number and strips whitespace.
func NormalizeIdentifier(s string) string {
	return reSpaces.ReplaceAllString(strings.ToUpper(s), "")
}
