// Package fraud scores extracted document fields for signs of tampering.
package fraud

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
)

// IndicatorType names one fraud check.
type IndicatorType string

const (
	IndicatorInvalidFormat   IndicatorType = "INVALID_FORMAT"
	IndicatorDateOrder       IndicatorType = "DATE_ORDER"
	IndicatorDistantExpiry   IndicatorType = "DISTANT_EXPIRY"
	IndicatorUnparseableDate IndicatorType = "UNPARSEABLE_DATE"
	IndicatorRecordFlagged   IndicatorType = "RECORD_FLAGGED"
	IndicatorPolicyMismatch  IndicatorType = "POLICY_MISMATCH"
	IndicatorMissingField    IndicatorType = "MISSING_FIELD"
	IndicatorFraudPattern    IndicatorType = "FRAUD_PATTERN"
)

const (
	pointsInvalidFormat   = 0.20
	pointsDateOrder       = 0.15
	pointsDistantExpiry   = 0.10
	pointsUnparseableDate = 0.05
	pointsRecordFlagged   = 0.30
	pointsPolicyMismatch  = 0.25
	pointsMissingField    = 0.10
	pointsFraudPattern    = 0.20

	// PassThreshold is the score at or above which an analysis fails.
	PassThreshold = 0.3
)

var reDocumentNumber = regexp.MustCompile(`^[A-Z0-9-]{6,20}$`)

var (
	companyPatterns = []string{"TEST", "FAKE", "SAMPLE"}
	policyPatterns  = []string{"12345", "00000", "XXXXX"}
)

// Indicator is one triggered check.
type Indicator struct {
	Type     IndicatorType      `json:"type"`
	Severity constants.Severity `json:"severity"`
	Message  string             `json:"message"`
	Score    float64            `json:"score"`
}

// Analysis is the result of scoring one document.
type Analysis struct {
	Score      float64             `json:"fraud_score"`
	RiskLevel  constants.RiskLevel `json:"risk_level"`
	Indicators []Indicator         `json:"indicators"`
	Passed     bool                `json:"passed"`
}

// Has reports whether an indicator of type t was raised.
func (a Analysis) Has(t IndicatorType) bool {
	for _, in := range a.Indicators {
		if in.Type == t {
			return true
		}
	}
	return false
}

// Analyzer is stateless apart from its clock.
type Analyzer struct {
	now func() time.Time
}

type Option func(*Analyzer)

// WithClock sets the clock used for the distant-expiry check.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze scores fields extracted from a document of the given category
// against the registry match for the same document.
func (a *Analyzer) Analyze(category constants.VerificationCategory, f parse.Fields, match registry.MatchResult) Analysis {
	var out Analysis
	add := func(t IndicatorType, sev constants.Severity, points float64, msg string) {
		out.Indicators = append(out.Indicators, Indicator{Type: t, Severity: sev, Message: msg, Score: points})
		out.Score += points
	}

	numberField, issueField := parse.FieldPolicyNumber, parse.FieldIssueDate
	if category == constants.CategoryEmission {
		numberField, issueField = parse.FieldCertificateNumber, parse.FieldTestDate
	}

	if number, ok := f.Get(numberField); ok && number != "" {
		if !reDocumentNumber.MatchString(strings.ToUpper(strings.TrimSpace(number))) {
			add(IndicatorInvalidFormat, constants.SeverityMedium, pointsInvalidFormat,
				fmt.Sprintf("%s %q has an invalid format", numberField, number))
		}
	}

	a.checkDates(f.Value(issueField), f.Value(parse.FieldExpiryDate), add)

	if match.Flagged() {
		status := string(match.Status)
		if match.Record != nil && match.Record.Status != "" {
			status = match.Record.Status
		}
		add(IndicatorRecordFlagged, constants.SeverityHigh, pointsRecordFlagged,
			fmt.Sprintf("registry record is flagged (%s)", status))
	}

	if claimed := registry.NormalizeIdentifier(f.Value(parse.FieldPolicyNumber)); claimed != "" && match.Record != nil {
		if onRecord := registry.NormalizeIdentifier(match.Record.PolicyNumber); onRecord != "" && onRecord != claimed {
			add(IndicatorPolicyMismatch, constants.SeverityHigh, pointsPolicyMismatch,
				fmt.Sprintf("policy number %s does not match registry record %s", claimed, onRecord))
		}
	}

	if category == constants.CategoryInsurance {
		for _, k := range []parse.Field{parse.FieldPolicyNumber, parse.FieldExpiryDate, parse.FieldInsuranceCompany} {
			if !f.NonEmpty(k) {
				add(IndicatorMissingField, constants.SeverityMedium, pointsMissingField,
					fmt.Sprintf("missing %s", k))
			}
		}
	}

	company := strings.ToUpper(f.Value(parse.FieldInsuranceCompany))
	for _, p := range companyPatterns {
		if company != "" && strings.Contains(company, p) {
			add(IndicatorFraudPattern, constants.SeverityHigh, pointsFraudPattern,
				fmt.Sprintf("insurance company contains %q", p))
		}
	}
	policy := strings.ToUpper(f.Value(parse.FieldPolicyNumber))
	for _, p := range policyPatterns {
		if policy != "" && strings.Contains(policy, p) {
			add(IndicatorFraudPattern, constants.SeverityHigh, pointsFraudPattern,
				fmt.Sprintf("policy number contains %q", p))
		}
	}

	out.Score = math.Min(1, math.Round(out.Score*100)/100)
	out.RiskLevel = RiskLevelFor(out.Score)
	out.Passed = out.Score < PassThreshold
	return out
}

func (a *Analyzer) checkDates(issueRaw, expiryRaw string, add func(IndicatorType, constants.Severity, float64, string)) {
	issue, issueOK := ParseDate(issueRaw)
	expiry, expiryOK := ParseDate(expiryRaw)

	if issueRaw != "" && expiryRaw != "" && (!issueOK || !expiryOK) {
		add(IndicatorUnparseableDate, constants.SeverityLow, pointsUnparseableDate,
			fmt.Sprintf("could not parse dates %q / %q", issueRaw, expiryRaw))
		return
	}
	if issueOK && expiryOK && !issue.Before(expiry) {
		add(IndicatorDateOrder, constants.SeverityHigh, pointsDateOrder,
			fmt.Sprintf("issue date %s is not before expiry date %s", issue.Format("2006-01-02"), expiry.Format("2006-01-02")))
	}
	if expiryOK && expiry.After(a.now().AddDate(2, 0, 0)) {
		add(IndicatorDistantExpiry, constants.SeverityMedium, pointsDistantExpiry,
			fmt.Sprintf("expiry date %s is more than two years away", expiry.Format("2006-01-02")))
	}
}

// RiskLevelFor buckets a score at 0.2, 0.5 and 0.8.
func RiskLevelFor(score float64) constants.RiskLevel {
	switch {
	case score < 0.2:
		return constants.RiskLow
	case score < 0.5:
		return constants.RiskMedium
	case score < 0.8:
		return constants.RiskHigh
	default:
		return constants.RiskCritical
	}
}
