package verification

import "github.com/joseph-ayodele/vehicle-clearance/internal/parse"

// Emission limits: CO in %, HC in ppm, smoke opacity in %.
const (
	LimitCO    = 4.5
	LimitHC    = 600.0
	LimitSmoke = 50.0
)

// Reading is one emission measurement compared against its limit.
type Reading struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Limit     float64 `json:"limit"`
	Present   bool    `json:"present"`
	Compliant bool    `json:"compliant"`
}

// ComplianceCheck is the per-reading result for an emission certificate.
type ComplianceCheck struct {
	Readings     []Reading `json:"readings"`
	AllCompliant bool      `json:"all_compliant"`
}

// CheckEmissionCompliance compares the CO, HC and smoke readings on an
// emission certificate with the regulatory limits. Readings the parser did
// not find are skipped; a certificate with none of them is not compliant.
func CheckEmissionCompliance(f parse.Fields) ComplianceCheck {
	limits := []struct {
		field parse.Field
		limit float64
	}{
		{parse.FieldCO, LimitCO},
		{parse.FieldHC, LimitHC},
		{parse.FieldSmoke, LimitSmoke},
	}

	check := ComplianceCheck{AllCompliant: true}
	present := 0
	for _, l := range limits {
		r := Reading{Name: string(l.field), Limit: l.limit}
		if v, ok := f.Number(l.field); ok {
			r.Value, r.Present = v, true
			r.Compliant = v <= l.limit
			present++
			if !r.Compliant {
				check.AllCompliant = false
			}
		}
		check.Readings = append(check.Readings, r)
	}
	if present == 0 {
		check.AllCompliant = false
	}
	return check
}
