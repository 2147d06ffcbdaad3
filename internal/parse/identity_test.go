package parse

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

const driversLicenseText = `REPUBLIC OF THE PHILIPPINES
DEPARTMENT OF TRANSPORTATION
LAND TRANSPORTATION OFFICE
NON-PROFESSIONAL DRIVER'S LICENSE
Name: DELA CRUZ, JUAN SANTOS
License No.: N01-12-345678
Expiration Date: 2027-05-14
`

type fixedScorer float64

func (s fixedScorer) Score(constants.IDType, IDCandidate, string) float64 { return float64(s) }

type panicScorer struct{}

func (panicScorer) Score(constants.IDType, IDCandidate, string) float64 { panic("scorer exploded") }

func quietParser(opts ...Option) *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestParse_DriversLicense(t *testing.T) {
	f := Parse(driversLicenseText, constants.DocOwnerID)

	assert.Equal(t, string(constants.IDDriversLicense), f.Value(FieldIDType))
	assert.Equal(t, "N01-12-345678", f.Value(FieldIDNumber))
	conf, ok := f.Confidence(FieldIDNumber)
	require.True(t, ok)
	assert.Greater(t, conf, MinIDConfidence)
	assert.LessOrEqual(t, conf, 1.0)
	assert.Equal(t, "DELA CRUZ, JUAN SANTOS", f.Value(FieldOwnerName))
	assert.Equal(t, "2027-05-14", f.Value(FieldExpiryDate))
}

func TestParse_MalformedIDNumberRejected(t *testing.T) {
	f := Parse("DRIVER'S LICENSE\nLicense No: 12345-ABC\n", constants.DocOwnerID)

	assert.Equal(t, string(constants.IDDriversLicense), f.Value(FieldIDType))
	assert.False(t, f.Has(FieldIDNumber), "format-invalid candidate scores at most 0.5")
}

func TestParse_PassportPrefersValidBareNumber(t *testing.T) {
	text := "PASSPORT\nPASAPORTE\nSurname: REYES\nP1234567A\n"
	f := Parse(text, constants.DocOwnerID)

	assert.Equal(t, string(constants.IDPassport), f.Value(FieldIDType))
	assert.Equal(t, "P1234567A", f.Value(FieldIDNumber))
}

func TestParse_HeaderClassificationBeatsBody(t *testing.T) {
	filler := strings.Repeat("This card is non-transferable and remains the property of the issuing agency.\n", 3)
	text := "UNIFIED MULTI-PURPOSE ID\nSOCIAL SECURITY SYSTEM\nCRN: 0111-2345678-9\n" + filler + "Holder also presented a passport"
	f := Parse(text, constants.DocOwnerID)

	assert.Equal(t, string(constants.IDSSS), f.Value(FieldIDType))
	assert.Equal(t, "0111-2345678-9", f.Value(FieldIDNumber))
}

func TestParse_UnclassifiedIDUsesGenericPatterns(t *testing.T) {
	f := Parse("COMPANY IDENTIFICATION CARD\nID No: ABC-123456\n", constants.DocOwnerID)

	assert.False(t, f.Has(FieldIDType))
	assert.Equal(t, "ABC-123456", f.Value(FieldIDNumber))
	_, hasConf := f.Confidence(FieldIDNumber)
	assert.False(t, hasConf)
}

func TestParse_CustomScorerGatesCandidates(t *testing.T) {
	low := quietParser(WithIDScorer(fixedScorer(0.5))).Parse(driversLicenseText, constants.DocOwnerID)
	assert.False(t, low.Has(FieldIDNumber), "exactly 0.5 is not enough")

	high := quietParser(WithIDScorer(fixedScorer(0.51))).Parse(driversLicenseText, constants.DocOwnerID)
	assert.Equal(t, "N01-12-345678", high.Value(FieldIDNumber))
	conf, _ := high.Confidence(FieldIDNumber)
	assert.InDelta(t, 0.51, conf, 1e-9)
}

func TestParse_FaultInIdentityStepKeepsOtherFields(t *testing.T) {
	f := quietParser(WithIDScorer(panicScorer{})).Parse(driversLicenseText, constants.DocOwnerID)

	assert.Equal(t, "DELA CRUZ, JUAN SANTOS", f.Value(FieldOwnerName))
	assert.Equal(t, string(constants.IDDriversLicense), f.Value(FieldIDType))
	assert.False(t, f.Has(FieldIDNumber))
}

func TestDefaultIDNumberScorer_ProximityAndSpecificity(t *testing.T) {
	s := DefaultIDNumberScorer{}
	upper := "PASSPORT NO " + "P1234567A"
	near := IDCandidate{Value: "P1234567A", Offset: len("PASSPORT NO "), Labeled: false}

	// format 1 + proximity + bare bonus, capped
	assert.Equal(t, 1.0, s.Score(constants.IDPassport, near, upper))

	far := IDCandidate{Value: "12-34", Offset: 400, Labeled: true}
	padded := "PASSPORT" + strings.Repeat(" ", 392) + "12-34"
	assert.InDelta(t, 0.2, s.Score(constants.IDPassport, far, padded), 1e-9, "no format, no proximity, labeled bonus only")

	bare := IDCandidate{Value: "BAD", Offset: 0}
	assert.InDelta(t, 0.1+0.3*(1-1.0/300), s.Score(constants.IDPassport, bare, "BAD PASSPORT"), 1e-9)
}

func TestClassifyID(t *testing.T) {
	cases := map[string]constants.IDType{
		"REPUBLIKA NG PILIPINAS\nPAMBANSANG PAGKAKAKILANLAN": constants.IDNational,
		"PHLPOST POSTAL IDENTITY CARD":                       constants.IDPostal,
		"COMELEC VOTER'S IDENTIFICATION CARD":                constants.IDVoters,
		"Driver's License":                                   constants.IDDriversLicense,
	}
	for text, want := range cases {
		got, ok := ClassifyID(text)
		assert.True(t, ok, text)
		assert.Equal(t, want, got, text)
	}
	_, ok := ClassifyID("LIBRARY CARD")
	assert.False(t, ok)
}
