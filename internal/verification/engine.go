package verification

import (
	"fmt"
	"math"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/fraud"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
)

// Score weights.
const (
	pointsRecordMatch = 40.0
	pointsNotExpired  = 20.0
	pointsConsistent  = 20.0
	pointsQualityFull = 10.0
	pointsQualityHalf = 5.0
	pointsFraudMax    = 10.0
	pointsCompliance  = 10.0

	maxScoreStandard = 100.0
	maxScoreEmission = 110.0
)

// DefaultMinScore is the approval threshold used when Config.MinScore is unset.
const DefaultMinScore = 90

// Config controls auto-approval.
type Config struct {
	Enabled  bool // when false nothing auto-approves
	MinScore int  // percentage required to approve, default 90
}

// Engine turns the checks run on one document into a decision. It holds no
// state beyond its config and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Input is everything Decide looks at.
type Input struct {
	Category    constants.VerificationCategory
	Fields      parse.Fields
	Match       registry.MatchResult
	Fraud       fraud.Analysis
	ExpiryValid bool
	Claim       registry.Claim
}

// Breakdown records the points each check contributed.
type Breakdown struct {
	RecordMatch float64 `json:"record_match"`
	NotExpired  float64 `json:"not_expired"`
	Consistency float64 `json:"consistency"`
	Quality     float64 `json:"quality"`
	FraudInv    float64 `json:"fraud_inverse"`
	Compliance  float64 `json:"compliance"`
}

// Decision is the outcome for one document.
type Decision struct {
	Category   constants.VerificationCategory `json:"category"`
	Status     constants.VerificationStatus   `json:"status"`
	Automated  bool                           `json:"automated"`
	Score      float64                        `json:"score"`
	MaxScore   float64                        `json:"max_score"`
	Percentage int                            `json:"percentage"`
	Confidence float64                        `json:"confidence"`
	Breakdown  Breakdown                      `json:"breakdown"`
	Reasons    []string                       `json:"reasons,omitempty"`
	Match      registry.MatchResult           `json:"match"`
	Fraud      fraud.Analysis                 `json:"fraud_analysis"`
	Compliance *ComplianceCheck               `json:"compliance_check,omitempty"`
	Fields     parse.Fields                   `json:"extracted_fields"`
	Error      string                         `json:"error,omitempty"`
}

// Approved reports whether the decision auto-approved the document.
func (d Decision) Approved() bool { return d.Status == constants.VerificationApproved }

// Decide scores in and applies the approval rule. It is a pure function of
// its input and the engine config.
func (e *Engine) Decide(in Input) Decision {
	d := Decision{
		Category: in.Category,
		MaxScore: maxScoreStandard,
		Match:    in.Match,
		Fraud:    in.Fraud,
		Fields:   in.Fields,
	}

	if in.Match.Status == constants.RecordValid {
		d.Breakdown.RecordMatch = pointsRecordMatch
	}
	if in.ExpiryValid {
		d.Breakdown.NotExpired = pointsNotExpired
	}
	if Consistent(in.Match, in.Claim) {
		d.Breakdown.Consistency = pointsConsistent
	}
	d.Breakdown.Quality = pointsQualityHalf
	if in.Fields.NonEmpty(qualityField(in.Category)) {
		d.Breakdown.Quality = pointsQualityFull
	}
	d.Breakdown.FraudInv = (1 - math.Min(1, math.Max(0, in.Fraud.Score))) * pointsFraudMax

	compliant := true
	if in.Category == constants.CategoryEmission {
		check := CheckEmissionCompliance(in.Fields)
		d.Compliance = &check
		d.MaxScore = maxScoreEmission
		compliant = check.AllCompliant
		if compliant {
			d.Breakdown.Compliance = pointsCompliance
		}
	}

	b := d.Breakdown
	d.Score = b.RecordMatch + b.NotExpired + b.Consistency + b.Quality + b.FraudInv + b.Compliance
	d.Percentage = int(math.Round(d.Score / d.MaxScore * 100))
	d.Confidence = float64(d.Percentage) / 100

	if in.Match.Status != constants.RecordValid {
		status := string(in.Match.Status)
		if status == "" {
			status = "UNAVAILABLE"
		}
		d.Reasons = append(d.Reasons, fmt.Sprintf("Database verification failed (%s)", status))
	}
	if !in.ExpiryValid {
		d.Reasons = append(d.Reasons, "Document expired")
	}
	if !compliant {
		d.Reasons = append(d.Reasons, "Emission readings non-compliant")
	}
	if !in.Fraud.Passed {
		d.Reasons = append(d.Reasons, fmt.Sprintf("Fraud risk detected (%s)", in.Fraud.RiskLevel))
	}
	if d.Percentage < e.cfg.MinScore {
		d.Reasons = append(d.Reasons, "Score below threshold")
	}
	if !e.cfg.Enabled {
		d.Reasons = append(d.Reasons, "Auto-verification disabled")
	}

	d.Status = constants.VerificationPending
	if len(d.Reasons) == 0 {
		d.Status = constants.VerificationApproved
		d.Automated = true
	}
	return d
}

// Failed is the decision returned when the pipeline itself broke.
func Failed(category constants.VerificationCategory, err error) Decision {
	return Decision{
		Category: category,
		Status:   constants.VerificationPending,
		MaxScore: maxScoreFor(category),
		Reasons:  []string{err.Error()},
		Error:    err.Error(),
	}
}

// Consistent reports whether the matched record agrees with the claim.
// With no record there is nothing to contradict.
func Consistent(match registry.MatchResult, claim registry.Claim) bool {
	if match.Record == nil {
		return true
	}
	if registry.NormalizePlate(match.Record.PlateNumber) != registry.NormalizePlate(claim.PlateNumber) {
		return false
	}
	if claimed := registry.NormalizeIdentifier(claim.PolicyNumber); claimed != "" {
		return registry.NormalizeIdentifier(match.Record.PolicyNumber) == claimed
	}
	return true
}

func qualityField(category constants.VerificationCategory) parse.Field {
	if category == constants.CategoryEmission {
		return parse.FieldTestDate
	}
	return parse.FieldPolicyNumber
}

func maxScoreFor(category constants.VerificationCategory) float64 {
	if category == constants.CategoryEmission {
		return maxScoreEmission
	}
	return maxScoreStandard
}
