package parse

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

const (
	headerWindow      = 200
	proximityRange    = 300.0
	maxProximityBonus = 0.3
	labeledBonus      = 0.2
	bareBonus         = 0.1
	// MinIDConfidence is the score an ID number candidate must exceed to be kept.
	MinIDConfidence = 0.5
)

// IDCandidate is a possible identity-document number found in the text.
// Offset is the byte offset of Value in the prepared text.
type IDCandidate struct {
	Value   string
	Offset  int
	Labeled bool
}

// IDNumberScorer rates a candidate in [0,1]. upperText is the uppercased
// document text the candidate offsets refer to.
type IDNumberScorer interface {
	Score(idType constants.IDType, c IDCandidate, upperText string) float64
}

type idSpec struct {
	idType   constants.IDType
	keywords []*regexp.Regexp
	format   *regexp.Regexp
	labeled  []*regexp.Regexp
	bare     []*regexp.Regexp
}

func words(ws ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(ws))
	for i, w := range ws {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// idSpecs is in classification priority order.
var idSpecs = []idSpec{
	{
		idType:   constants.IDPassport,
		keywords: words("PASSPORT", "PASAPORTE", "PASSPORT NO"),
		format:   regexp.MustCompile(`^[A-Z]{1,2}\d{6,7}[A-Z]?$`),
		labeled:  []*regexp.Regexp{re(`\bpassport\s*` + labelNo + `?` + identSep + looseIDVal)},
		bare:     []*regexp.Regexp{re(`\b([A-Z]{1,2}\d{7}[A-Z]?)\b`)},
	},
	{
		idType:   constants.IDDriversLicense,
		keywords: words("DRIVER'S LICENSE", "DRIVERS LICENSE", "DRIVER LICENSE", "NON-PROFESSIONAL", "PROFESSIONAL", "LICENSE NO", "LICENSE"),
		format:   regexp.MustCompile(`^[A-Z]\d{2}-\d{2}-\d{6}$`),
		labeled:  []*regexp.Regexp{re(`\b(?:license|licence|DL)\s*` + labelNo + identSep + looseIDVal)},
		bare:     []*regexp.Regexp{re(`\b([A-Z]\d{2}-\d{2}-\d{6})\b`)},
	},
	{
		idType:   constants.IDNational,
		keywords: words("PHILSYS", "PHILIPPINE IDENTIFICATION", "PAMBANSANG PAGKAKAKILANLAN", "NATIONAL ID", "PCN"),
		format:   regexp.MustCompile(`^\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}$`),
		labeled:  []*regexp.Regexp{re(`\b(?:PCN|philsys\s*(?:card\s*)?` + labelNo + `|ID\s*` + labelNo + `)` + identSep + `(\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b|[A-Z0-9][A-Z0-9\-]{4,24})`)},
		bare:     []*regexp.Regexp{re(`\b(\d{4}-\d{4}-\d{4}-\d{4})\b`)},
	},
	{
		idType:   constants.IDPostal,
		keywords: words("POSTAL ID", "POSTAL IDENTITY", "PHLPOST", "PHILPOST", "PRN"),
		format:   regexp.MustCompile(`^[A-Z]{3}\d{9}[A-Z]?$`),
		labeled:  []*regexp.Regexp{re(`\b(?:PRN|postal\s*id\s*` + labelNo + `)` + identSep + looseIDVal)},
		bare:     []*regexp.Regexp{re(`\b([A-Z]{3}\d{9}[A-Z]?)\b`)},
	},
	{
		idType:   constants.IDVoters,
		keywords: words("VOTER'S ID", "VOTERS ID", "VOTER ID", "VOTER'S IDENTIFICATION", "COMELEC"),
		format:   regexp.MustCompile(`^\d{4}-\d{4}[A-Z]-[A-Z0-9]{8,15}$`),
		labeled:  []*regexp.Regexp{re(`\b(?:VIN|voter'?s?\s*id(?:entification)?\s*` + labelNo + `)` + identSep + looseIDVal)},
		bare:     []*regexp.Regexp{re(`\b(\d{4}-\d{4}[A-Z]-[A-Z0-9]{8,15})\b`)},
	},
	{
		idType:   constants.IDSSS,
		keywords: words("SOCIAL SECURITY SYSTEM", "SSS", "UMID", "CRN"),
		format:   regexp.MustCompile(`^(?:\d{2}-\d{7}-\d|\d{4}-\d{7}-\d)$`),
		labeled:  []*regexp.Regexp{re(`\b(?:SSS|CRN|UMID)\s*` + labelNo + `?` + identSep + looseIDVal)},
		bare:     []*regexp.Regexp{re(`\b(\d{2}-\d{7}-\d)\b`)},
	},
}

// labeled captures are loose on purpose; the scorer's format check decides
const looseIDVal = `([A-Z0-9][A-Z0-9\-]{4,24})`

var genericIDPatterns = []*regexp.Regexp{
	re(`\b(?:id|identification|license|licence|card|passport|CRN|PRN|PCN)\s*` + labelNo + identSep + looseIDVal),
}

var reGenericID = regexp.MustCompile(`^[A-Z0-9]{6,24}$`)

func specFor(t constants.IDType) (idSpec, bool) {
	for _, s := range idSpecs {
		if s.idType == t {
			return s, true
		}
	}
	return idSpec{}, false
}

// ClassifyID finds the ID type from the header first, then the whole text.
func ClassifyID(text string) (constants.IDType, bool) {
	return classifyID(prepare(text))
}

func classifyID(doc document) (constants.IDType, bool) {
	header := doc.flat
	if len(header) > headerWindow {
		header = header[:headerWindow]
	}
	for _, scope := range []string{header, doc.flat} {
		for _, s := range idSpecs {
			for _, kw := range s.keywords {
				if kw.MatchString(scope) {
					return s.idType, true
				}
			}
		}
	}
	return "", false
}

// DefaultIDNumberScorer scores format validity (0 or 1), keyword proximity
// (up to 0.3, closer is higher) and pattern specificity (0.2 labeled, 0.1 bare).
type DefaultIDNumberScorer struct{}

func (DefaultIDNumberScorer) Score(idType constants.IDType, c IDCandidate, upperText string) float64 {
	spec, ok := specFor(idType)
	if !ok {
		return 0
	}
	score := 0.0
	if spec.format.MatchString(strings.ToUpper(c.Value)) {
		score += 1
	}
	score += proximityBonus(spec, c, upperText)
	if c.Labeled {
		score += labeledBonus
	} else {
		score += bareBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

func proximityBonus(spec idSpec, c IDCandidate, upperText string) float64 {
	best := proximityRange
	end := c.Offset + len(c.Value)
	for _, kw := range spec.keywords {
		for _, loc := range kw.FindAllStringIndex(upperText, -1) {
			var d int
			switch {
			case loc[1] <= c.Offset:
				d = c.Offset - loc[1]
			case loc[0] >= end:
				d = loc[0] - end
			default:
				d = 0
			}
			if float64(d) < best {
				best = float64(d)
			}
		}
	}
	return maxProximityBonus * (1 - best/proximityRange)
}

// extractIdentity classifies the ID and keeps the best-scoring number above MinIDConfidence.
func (p *Parser) extractIdentity(doc document, f *Fields) {
	idType, ok := classifyID(doc)
	if !ok {
		extractGenericID(doc, f)
		return
	}
	f.setIfAbsent(FieldIDType, string(idType))
	spec, _ := specFor(idType)

	var best IDCandidate
	bestScore := -1.0
	consider := func(patterns []*regexp.Regexp, labeled bool) {
		for _, pat := range patterns {
			for _, m := range pat.FindAllStringSubmatchIndex(doc.raw, -1) {
				c := IDCandidate{Value: strings.ToUpper(doc.raw[m[2]:m[3]]), Offset: m[2], Labeled: labeled}
				s := p.scorer.Score(idType, c, doc.upper)
				if s > bestScore {
					best, bestScore = c, s
				}
			}
		}
	}
	consider(spec.labeled, true)
	consider(spec.bare, false)

	if bestScore > MinIDConfidence {
		f.setIfAbsent(FieldIDNumber, best.Value)
		f.SetConfidence(FieldIDNumber, bestScore)
	}
}

func extractGenericID(doc document, f *Fields) {
	for _, pat := range genericIDPatterns {
		for _, m := range pat.FindAllStringSubmatch(doc.raw, -1) {
			v := strings.ToUpper(strings.Trim(m[1], "-"))
			compact := strings.ReplaceAll(v, "-", "")
			if reGenericID.MatchString(compact) && reHasDigit.MatchString(compact) {
				f.setIfAbsent(FieldIDNumber, v)
				return
			}
		}
	}
}
