package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

type valueKind int

const (
	kindText valueKind = iota
	kindIdent
	kindPlate
	kindDate
	kindYear
	kindNumber
)

// rule extracts one field. Patterns are tried in order and the first
// acceptable match wins. A match is skipped when the text right before it
// ends with one of notAfter (so "Year Model:" does not feed "model").
type rule struct {
	field    Field
	mirror   Field
	kind     valueKind
	patterns []*regexp.Regexp
	notAfter []string
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

const (
	labelNo   = `(?:no\.?|number|#)`
	identSep  = `\s*[:\-]?\s*`
	textSep   = `[ \t]*[:\-][ \t]*`
	identVal  = `([A-Z0-9][A-Z0-9\-]{2,29})`
	textVal   = `([^\n]+)`
	dateVal   = `(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{1,2}-\d{1,2}|[A-Z]{3,9}\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+[A-Z]{3,9}\.?,?\s+\d{4})`
	numberVal = `(\d+(?:\.\d+)?)`
	plateVal  = `(to\s+be\s+issued|[A-Z]{1,3}[ \-]?\d{2,5}|\d{3,4}[ \-]?[A-Z]{1,3})\b`
)

// shared vehicle identifier rules, compound labels first
var (
	plateRule = rule{field: FieldPlateNumber, kind: kindPlate, patterns: []*regexp.Regexp{
		re(`\bplate\s*` + labelNo + `?` + identSep + plateVal),
	}}
	engineRule = rule{field: FieldEngineNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bengine\s*/\s*motor\s*` + labelNo + `?` + identSep + identVal),
		re(`\b(?:engine|motor)\s*` + labelNo + identSep + identVal),
		re(`\bengine` + textSep + identVal),
	}}
	chassisRule = rule{field: FieldChassisNumber, mirror: FieldVIN, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bchassis\s*/\s*vin\s*` + labelNo + `?` + identSep + identVal),
		re(`\bvin\s*/\s*chassis\s*` + labelNo + `?` + identSep + identVal),
		re(`\bchassis\s*/\s*serial\s*` + labelNo + `?` + identSep + identVal),
		re(`\bchassis\s*` + labelNo + identSep + identVal),
		re(`\bchassis` + textSep + identVal),
		re(`\bvin\s*` + labelNo + `?` + identSep + identVal),
		re(`\bvehicle\s+identification\s+` + labelNo + identSep + identVal),
	}}
	makeRule = rule{field: FieldMake, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bmake\s*/\s*brand` + textSep + textVal),
		re(`\b(?:make|brand)` + textSep + textVal),
	}}
	seriesRule = rule{field: FieldSeries, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bseries` + textSep + textVal),
	}}
	modelRule = rule{field: FieldModel, kind: kindText, notAfter: []string{"YEAR"}, patterns: []*regexp.Regexp{
		re(`\b(?:vehicle\s+)?model` + textSep + textVal),
	}}
	yearModelRule = rule{field: FieldYearModel, kind: kindYear, patterns: []*regexp.Regexp{
		re(`\byear\s*model` + textSep + `(\d{4})`),
		re(`\bmodel\s*year` + textSep + `(\d{4})`),
	}}
	yearRule = rule{field: FieldYear, kind: kindYear, patterns: []*regexp.Regexp{
		re(`\byear(?:\s*of\s*manufacture)?` + textSep + `(\d{4})`),
	}}
	colorRule = rule{field: FieldColor, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bcolou?r` + textSep + textVal),
	}}
	bodyTypeRule = rule{field: FieldBodyType, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bbody\s*type` + textSep + textVal),
	}}
	fuelRule = rule{field: FieldFuelType, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bfuel(?:\s*type)?` + textSep + textVal),
	}}
	ownerRule = rule{field: FieldOwnerName, kind: kindText, patterns: []*regexp.Regexp{
		re(`\bregistered\s+owner(?:'?s)?(?:\s*name)?` + textSep + textVal),
		re(`\bowner(?:'?s)?(?:\s*name)?` + textSep + textVal),
	}}
	addressRule = rule{field: FieldAddress, kind: kindText, patterns: []*regexp.Regexp{
		re(`\baddress` + textSep + textVal),
	}}
	expiryRule = rule{field: FieldExpiryDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:expiry|expiration)\s*date` + identSep + dateVal),
		re(`\bvalid\s*(?:until|thru|through|to)` + identSep + dateVal),
		re(`\bexpires?(?:\s*on)?` + identSep + dateVal),
		re(`\bperiod\s+of\s+(?:insurance|cover)\s*:?\s*` + dateVal + `\s*(?:to|-)\s*` + dateVal),
	}}
)

var registrationRules = []rule{
	plateRule,
	engineRule,
	chassisRule,
	makeRule,
	seriesRule,
	modelRule,
	yearModelRule,
	yearRule,
	colorRule,
	bodyTypeRule,
	fuelRule,
	{field: FieldMVFileNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bm\.?\s*v\.?\s*file\s*` + labelNo + identSep + `([0-9][0-9\-]{5,24})`),
	}},
	{field: FieldORNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bofficial\s+receipt\s*` + labelNo + identSep + identVal),
		re(`\bO\.?\s?R\.?\s*` + labelNo + identSep + identVal),
	}},
	{field: FieldCRNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bcertificate\s+of\s+registration\s*` + labelNo + identSep + identVal),
		re(`\bC\.?\s?R\.?\s*` + labelNo + identSep + identVal),
	}},
	{field: FieldRegistrationDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:date\s+of\s+registration|registration\s+date|date\s+registered)` + identSep + dateVal),
	}},
	ownerRule,
	addressRule,
}

var insuranceRules = []rule{
	{field: FieldPolicyNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bpolicy\s*` + labelNo + identSep + identVal),
		re(`\bC\.?O\.?C\.?\s*` + labelNo + identSep + identVal),
		re(`\bcertificate\s+of\s+cover(?:\s*` + labelNo + `)?` + identSep + identVal),
		re(`\bpolicy` + textSep + identVal),
	}},
	{field: FieldInsuranceCompany, kind: kindText, patterns: []*regexp.Regexp{
		re(`\binsurance\s+(?:company|provider|carrier)` + textSep + textVal),
		re(`\b(?:insurer|underwriter|issued\s+by)` + textSep + textVal),
		re(`(?m)^[ \t]*company` + textSep + textVal),
	}},
	{field: FieldCoverageType, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:coverage|type\s+of\s+(?:cover|insurance)|line)` + textSep + textVal),
	}},
	{field: FieldIssueDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:issue[d]?\s*date|date\s*(?:of\s*)?issue[d]?|effective\s*date|inception\s*date)` + identSep + dateVal),
		re(`\b(?:valid|period)\s+from` + identSep + dateVal),
		re(`\bperiod\s+of\s+(?:insurance|cover)\s*:?\s*` + dateVal),
	}},
	expiryRule,
	{field: FieldOwnerName, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:name\s+of\s+)?(?:assured|insured)(?:'?s)?(?:\s*name)?` + textSep + textVal),
	}},
	plateRule,
	engineRule,
	chassisRule,
	makeRule,
	modelRule,
	yearModelRule,
	yearRule,
}

var emissionRules = []rule{
	{field: FieldCertificateNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bcertificate\s+of\s+emission\s+compliance\s*` + labelNo + `?` + identSep + identVal),
		re(`\bC\.?E\.?C\.?\s*` + labelNo + identSep + identVal),
		re(`\bcert(?:ificate|\.)?\s*` + labelNo + identSep + identVal),
	}},
	{field: FieldTestDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:test\s*date|date\s*(?:of\s*)?test(?:ed|ing)?)` + identSep + dateVal),
	}},
	expiryRule,
	{field: FieldTestingCenter, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:private\s+emission\s+testing\s+center|testing\s+center|PETC|emission\s+center)` + textSep + textVal),
	}},
	{field: FieldTestResult, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:test\s+)?result` + textSep + `(pass(?:ed)?|fail(?:ed)?)`),
	}},
	{field: FieldCO, kind: kindNumber, patterns: []*regexp.Regexp{
		re(`\bCO\b[ \t]*(?:\(\s*%\s*\)|%|level|reading|value)?` + `[ \t]*[:=\-]?[ \t]*` + numberVal),
		re(`\bcarbon\s+monoxide[ \t]*(?:\(\s*%\s*\)|%)?[ \t]*[:=\-]?[ \t]*` + numberVal),
	}},
	{field: FieldHC, kind: kindNumber, patterns: []*regexp.Regexp{
		re(`\bHC\b[ \t]*(?:\(\s*ppm\s*\)|ppm|level|reading|value)?` + `[ \t]*[:=\-]?[ \t]*` + numberVal),
		re(`\bhydrocarbons?[ \t]*(?:\(\s*ppm\s*\)|ppm)?[ \t]*[:=\-]?[ \t]*` + numberVal),
	}},
	{field: FieldSmoke, kind: kindNumber, patterns: []*regexp.Regexp{
		re(`\b(?:smoke\s*opacity|opacity|smoke)[ \t]*(?:\(\s*%\s*\)|%|k|level|reading|value)?` + `[ \t]*[:=\-]?[ \t]*` + numberVal),
	}},
	plateRule,
	engineRule,
	chassisRule,
	makeRule,
	yearModelRule,
	yearRule,
}

var salesInvoiceRules = []rule{
	{field: FieldInvoiceNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\b(?:sales\s+)?invoice\s*` + labelNo + identSep + identVal),
		re(`\bS\.?I\.?\s*` + labelNo + identSep + identVal),
	}},
	{field: FieldInvoiceDate, kind: kindDate, notAfter: []string{"DUE", "BIRTH", "EXPIRY", "DELIVERY"}, patterns: []*regexp.Regexp{
		re(`\binvoice\s+date` + identSep + dateVal),
		re(`\bdate` + textSep + dateVal),
	}},
	{field: FieldDealerName, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:dealer(?:'?s)?(?:\s*name)?|sold\s+by|seller)` + textSep + textVal),
	}},
	{field: FieldOwnerName, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:sold\s+to|buyer(?:'?s)?(?:\s*name)?|customer(?:\s*name)?)` + textSep + textVal),
	}},
	{field: FieldPrice, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:total\s+amount(?:\s+due)?|amount\s+due|selling\s+price|total\s+price)` + `[ \t]*[:\-]?[ \t]*(?:PHP|P|₱)?[ \t]*([\d,]+(?:\.\d{2})?)`),
	}},
	makeRule,
	seriesRule,
	modelRule,
	yearModelRule,
	yearRule,
	colorRule,
	bodyTypeRule,
	engineRule,
	chassisRule,
}

var csrRules = []rule{
	{field: FieldCSRNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\bcertificate\s+of\s+stocks?\s+report?\s*` + labelNo + `?` + identSep + identVal),
		re(`\bCSR\s*` + labelNo + `?` + identSep + identVal),
	}},
	{field: FieldDealerName, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:dealer(?:'?s)?(?:\s*name)?|assembler|manufacturer|importer)` + textSep + textVal),
	}},
	makeRule,
	seriesRule,
	modelRule,
	yearModelRule,
	yearRule,
	colorRule,
	bodyTypeRule,
	fuelRule,
	engineRule,
	chassisRule,
}

var hpgRules = []rule{
	{field: FieldClearanceNumber, kind: kindIdent, patterns: []*regexp.Regexp{
		re(`\b(?:clearance|control|certificate)\s*` + labelNo + identSep + identVal),
	}},
	{field: FieldIssueDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:date\s+issued|issue[d]?\s*date|date\s+of\s+issue)` + identSep + dateVal),
	}},
	{field: FieldRemarks, kind: kindText, patterns: []*regexp.Regexp{
		re(`\b(?:remarks?|findings?)` + textSep + textVal),
	}},
	plateRule,
	engineRule,
	chassisRule,
	makeRule,
	seriesRule,
	modelRule,
	colorRule,
	ownerRule,
}

var ownerIDRules = []rule{
	{field: FieldOwnerName, kind: kindText, notAfter: []string{"MIDDLE", "MOTHER'S", "FATHER'S", "MAIDEN", "SPOUSE"}, patterns: []*regexp.Regexp{
		re(`\bfull\s+name` + textSep + textVal),
		re(`\bname` + textSep + textVal),
	}},
	{field: FieldBirthDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:date\s+of\s+birth|birth\s*date|D\.?O\.?B\.?)` + identSep + dateVal),
	}},
	{field: FieldExpiryDate, kind: kindDate, patterns: []*regexp.Regexp{
		re(`\b(?:expiration|expiry)\s*date` + identSep + dateVal),
		re(`\bvalid\s*until` + identSep + dateVal),
	}},
	addressRule,
}

var rulesByType = map[constants.DocumentType][]rule{
	constants.DocRegistrationCert: registrationRules,
	constants.DocInsuranceCert:    insuranceRules,
	constants.DocEmissionCert:     emissionRules,
	constants.DocSalesInvoice:     salesInvoiceRules,
	constants.DocCSR:              csrRules,
	constants.DocHPGClearance:     hpgRules,
	constants.DocOwnerID:          ownerIDRules,
}

var (
	reToBeIssued = regexp.MustCompile(`(?i)^to\s+be\s+issued$`)
	reHasDigit   = regexp.MustCompile(`\d`)
	// a following label on the same line ends a free-text value
	reNextLabel = re(`\s+(?:plate|engine|chassis|vin|make|brand|series|model|year|colou?r|body|fuel|address|owner|policy|expiry|expiration|date|valid|issued|coverage|insurer|premium|tin|contact|sex|gender|birth|nationality|mv\s*file|o\.?r\.?\s*no|c\.?r\.?\s*no|period|assured|insured|amount|total|remarks|result)\b[^:\n]{0,20}:`)
)

// apply runs a rule against doc and stores the first acceptable value.
func (r rule) apply(doc document, f *Fields) {
	if f.Has(r.field) {
		return
	}
	for _, p := range r.patterns {
		for _, m := range p.FindAllStringSubmatchIndex(doc.raw, -1) {
			if r.blockedBefore(doc, m[0]) {
				continue
			}
			raw := doc.raw[m[2]:m[3]]
			if r.kind == kindDate && len(m) >= 6 && m[4] >= 0 && r.field == FieldExpiryDate {
				// "period of insurance: A to B" carries the expiry in the second group
				raw = doc.raw[m[4]:m[5]]
			}
			if r.store(raw, f) {
				return
			}
		}
	}
}

func (r rule) blockedBefore(doc document, start int) bool {
	if len(r.notAfter) == 0 {
		return false
	}
	before := strings.TrimRight(doc.upper[:start], " \t")
	for _, w := range r.notAfter {
		if strings.HasSuffix(before, w) {
			return true
		}
	}
	return false
}

func (r rule) store(raw string, f *Fields) bool {
	switch r.kind {
	case kindPlate:
		v := collapse(raw)
		if reToBeIssued.MatchString(v) {
			f.setIfAbsent(r.field, "")
			return true
		}
		f.setIfAbsent(r.field, strings.ToUpper(v))
		return true
	case kindIdent:
		v := strings.Trim(collapse(raw), "-")
		if len(v) < 3 || !reHasDigit.MatchString(v) {
			return false
		}
		v = strings.ToUpper(v)
		f.setIfAbsent(r.field, v)
		if r.mirror != "" {
			f.setIfAbsent(r.mirror, v)
		}
		return true
	case kindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return false
		}
		if _, ok := f.Number(r.field); !ok {
			f.SetNumber(r.field, n)
		}
		return true
	case kindYear:
		v := strings.TrimSpace(raw)
		if y, err := strconv.Atoi(v); err != nil || y < 1900 || y > 2100 {
			return false
		}
		return f.setIfAbsent(r.field, v)
	case kindDate:
		v := collapse(raw)
		if v == "" {
			return false
		}
		return f.setIfAbsent(r.field, v)
	default:
		v := cleanText(raw)
		if v == "" {
			return false
		}
		return f.setIfAbsent(r.field, v)
	}
}

// cleanText cuts a free-text capture at a column gap or the next label.
func cleanText(raw string) string {
	if loc := reColumnGap.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	if loc := reNextLabel.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	return strings.Trim(collapse(raw), " ,;:|")
}
