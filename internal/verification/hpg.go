package verification

import (
	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
)

// InspectionNote is attached to every HPG pre-fill.
const InspectionNote = "physical inspection required"

// Prefill is the manual-review form staged for an HPG clearance. HPG never
// auto-approves.
type Prefill struct {
	Status       constants.VerificationStatus `json:"status"`
	Note         string                       `json:"note"`
	Completeness int                          `json:"completeness_score"`
	Identifiers  map[string]string            `json:"identifiers"`
}

var prefillFields = []parse.Field{
	parse.FieldPlateNumber,
	parse.FieldEngineNumber,
	parse.FieldChassisNumber,
	parse.FieldVIN,
	parse.FieldMake,
	parse.FieldModel,
	parse.FieldYear,
	parse.FieldColor,
	parse.FieldOwnerName,
}

// PrefillHPG stages extracted identifiers for the HPG reviewer. Completeness
// is 50 when both engine and chassis numbers were extracted, else 0.
func (e *Engine) PrefillHPG(f parse.Fields) Prefill {
	p := Prefill{
		Status:      constants.VerificationPending,
		Note:        InspectionNote,
		Identifiers: map[string]string{},
	}
	for _, k := range prefillFields {
		if v, ok := f.Get(k); ok {
			p.Identifiers[string(k)] = v
		}
	}
	if f.NonEmpty(parse.FieldEngineNumber) && f.NonEmpty(parse.FieldChassisNumber) {
		p.Completeness = 50
	}
	return p
}
