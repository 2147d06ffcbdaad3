package fraud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(WithClock(func() time.Time { return now }))
}

func cleanInsurance() parse.Fields {
	return parse.NewFields(map[parse.Field]string{
		parse.FieldPolicyNumber:     "CTPL-2024-000981",
		parse.FieldInsuranceCompany: "Malayan Insurance Co., Inc.",
		parse.FieldIssueDate:        "06/01/2025",
		parse.FieldExpiryDate:       "06/01/2026",
		parse.FieldPlateNumber:      "NAB 4521",
	})
}

func validMatch() registry.MatchResult {
	return registry.MatchResult{
		Found: true, Status: constants.RecordValid, CanApprove: true,
		Record: &registry.Record{PlateNumber: "NAB 4521", PolicyNumber: "ctpl-2024-000981"},
	}
}

func TestAnalyze_CleanDocumentPasses(t *testing.T) {
	a := newTestAnalyzer().Analyze(constants.CategoryInsurance, cleanInsurance(), validMatch())

	assert.Empty(t, a.Indicators)
	assert.Zero(t, a.Score)
	assert.Equal(t, constants.RiskLow, a.RiskLevel)
	assert.True(t, a.Passed)
}

func TestAnalyze_ShortPolicyNumberIsInvalidFormat(t *testing.T) {
	f := cleanInsurance()
	f.Set(parse.FieldPolicyNumber, "12-34")

	a := newTestAnalyzer().Analyze(constants.CategoryInsurance, f, registry.MatchResult{Status: constants.RecordNotFound, CanApprove: true})

	require.Len(t, a.Indicators, 1)
	assert.Equal(t, IndicatorInvalidFormat, a.Indicators[0].Type)
	assert.Equal(t, 0.20, a.Indicators[0].Score)
	assert.InDelta(t, 0.20, a.Score, 1e-9)
	assert.Equal(t, constants.RiskMedium, a.RiskLevel)
	assert.True(t, a.Passed)
}

func TestAnalyze_Indicators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *parse.Fields, m *registry.MatchResult)
		want   IndicatorType
		points float64
	}{
		{"issue after expiry", func(f *parse.Fields, _ *registry.MatchResult) {
			f.Set(parse.FieldIssueDate, "07/01/2026")
		}, IndicatorDateOrder, 0.15},
		{"same day issue and expiry", func(f *parse.Fields, _ *registry.MatchResult) {
			f.Set(parse.FieldIssueDate, "2026-06-01")
		}, IndicatorDateOrder, 0.15},
		{"expiry too far out", func(f *parse.Fields, _ *registry.MatchResult) {
			f.Set(parse.FieldExpiryDate, "12/31/2030")
		}, IndicatorDistantExpiry, 0.10},
		{"garbled date", func(f *parse.Fields, _ *registry.MatchResult) {
			f.Set(parse.FieldExpiryDate, "31/31/2026")
		}, IndicatorUnparseableDate, 0.05},
		{"flagged record", func(_ *parse.Fields, m *registry.MatchResult) {
			m.Status = constants.RecordFlagged
			m.Record = &registry.Record{PlateNumber: "NAB 4521", Status: registry.ProblemTampered}
		}, IndicatorRecordFlagged, 0.30},
		{"policy mismatch", func(_ *parse.Fields, m *registry.MatchResult) {
			m.Record.PolicyNumber = "CTPL-2024-999999"
		}, IndicatorPolicyMismatch, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, m := cleanInsurance(), validMatch()
			tt.mutate(&f, &m)
			a := newTestAnalyzer().Analyze(constants.CategoryInsurance, f, m)

			require.Len(t, a.Indicators, 1, "%+v", a.Indicators)
			assert.Equal(t, tt.want, a.Indicators[0].Type)
			assert.InDelta(t, tt.points, a.Score, 1e-9)
		})
	}
}

func TestAnalyze_MissingFieldsInsuranceOnly(t *testing.T) {
	var empty parse.Fields
	match := registry.MatchResult{Status: constants.RecordNotFound, CanApprove: true}

	ins := newTestAnalyzer().Analyze(constants.CategoryInsurance, empty, match)
	assert.InDelta(t, 0.30, ins.Score, 1e-9)
	assert.Len(t, ins.Indicators, 3)
	assert.False(t, ins.Passed)

	em := newTestAnalyzer().Analyze(constants.CategoryEmission, empty, match)
	assert.Zero(t, em.Score)
	assert.True(t, em.Passed)
}

func TestAnalyze_FraudPatternsCountEach(t *testing.T) {
	f := cleanInsurance()
	f.Set(parse.FieldInsuranceCompany, "Sample Test Insurance")
	f.Set(parse.FieldPolicyNumber, "POL-12345-00000")

	a := newTestAnalyzer().Analyze(constants.CategoryInsurance, f, registry.MatchResult{Status: constants.RecordNotFound})

	n := 0
	for _, in := range a.Indicators {
		if in.Type == IndicatorFraudPattern {
			n++
		}
	}
	assert.Equal(t, 4, n)
	assert.InDelta(t, 0.80, a.Score, 1e-9)
	assert.Equal(t, constants.RiskCritical, a.RiskLevel)
}

func TestAnalyze_ScoreIsCapped(t *testing.T) {
	f := parse.NewFields(map[parse.Field]string{
		parse.FieldPolicyNumber:     "XXXXX12345000001234567890",
		parse.FieldInsuranceCompany: "TEST FAKE SAMPLE",
		parse.FieldIssueDate:        "12/31/2099",
		parse.FieldExpiryDate:       "01/01/2099",
	})
	m := registry.MatchResult{Status: constants.RecordFlagged, Record: &registry.Record{PolicyNumber: "OTHER-1"}}

	a := newTestAnalyzer().Analyze(constants.CategoryInsurance, f, m)
	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, constants.RiskCritical, a.RiskLevel)
	assert.False(t, a.Passed)
	assert.True(t, a.Has(IndicatorRecordFlagged))
	assert.True(t, a.Has(IndicatorPolicyMismatch))
}

func TestAnalyze_EmissionUsesCertificateNumberAndTestDate(t *testing.T) {
	f := parse.NewFields(map[parse.Field]string{
		parse.FieldCertificateNumber: "EC1",
		parse.FieldTestDate:          "03/10/2026",
		parse.FieldExpiryDate:        "03/10/2025",
	})
	a := newTestAnalyzer().Analyze(constants.CategoryEmission, f, registry.MatchResult{Status: constants.RecordNotFound})

	assert.True(t, a.Has(IndicatorInvalidFormat))
	assert.True(t, a.Has(IndicatorDateOrder))
	assert.InDelta(t, 0.35, a.Score, 1e-9)
	assert.False(t, a.Passed)
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, constants.RiskLow, RiskLevelFor(0.19))
	assert.Equal(t, constants.RiskMedium, RiskLevelFor(0.2))
	assert.Equal(t, constants.RiskMedium, RiskLevelFor(0.49))
	assert.Equal(t, constants.RiskHigh, RiskLevelFor(0.5))
	assert.Equal(t, constants.RiskHigh, RiskLevelFor(0.79))
	assert.Equal(t, constants.RiskCritical, RiskLevelFor(0.8))
}

func TestParseDate(t *testing.T) {
	ok := map[string]time.Time{
		"01/15/2026":           time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		"1/5/26":               time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		"12/31/49":             time.Date(2049, 12, 31, 0, 0, 0, 0, time.UTC),
		"12/31/50":             time.Date(1950, 12, 31, 0, 0, 0, 0, time.UTC),
		"2027-05-14":           time.Date(2027, 5, 14, 0, 0, 0, 0, time.UTC),
		"2027-05-14T00:00:00Z": time.Date(2027, 5, 14, 0, 0, 0, 0, time.UTC),
		"January 15, 2026":     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		"15 Jan 2026":          time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range ok {
		got, parsed := ParseDate(in)
		assert.True(t, parsed, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
	}
	for _, in := range []string{"", "13/01/2026", "02/30/2026", "soon", "2026"} {
		_, parsed := ParseDate(in)
		assert.False(t, parsed, in)
	}
}
