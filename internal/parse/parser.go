package parse

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

// Parser turns extracted text into Fields using per-document-type pattern tables.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	scorer IDNumberScorer
	logger *slog.Logger
}

type Option func(*Parser)

// WithIDScorer replaces the identity-number confidence scorer.
func WithIDScorer(s IDNumberScorer) Option {
	return func(p *Parser) {
		if s != nil {
			p.scorer = s
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{scorer: DefaultIDNumberScorer{}, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse extracts fields with the default parser.
func Parse(text string, docType constants.DocumentType) Fields {
	return New(nil).Parse(text, docType)
}

// Parse is total: empty text or an unknown document type yields empty
// Fields, and a fault inside one extraction step keeps what was found before it.
func (p *Parser) Parse(text string, docType constants.DocumentType) Fields {
	var f Fields
	if strings.TrimSpace(text) == "" {
		return f
	}
	rules, ok := rulesByType[docType]
	if !ok {
		p.logger.Debug("parse.unknown_type", "document_type", docType)
		return f
	}
	doc := prepare(text)

	p.guard(docType, "rules", func() {
		for _, r := range rules {
			r.apply(doc, &f)
		}
	})
	switch docType {
	case constants.DocOwnerID:
		p.guard(docType, "identity", func() { p.extractIdentity(doc, &f) })
	case constants.DocInsuranceCert:
		p.guard(docType, "coverage", func() { inferCoverage(doc, &f) })
	}
	mirrorAliases(&f)

	p.logger.Debug("parse.ok", "document_type", docType, "fields", f.Len())
	return f
}

func (p *Parser) guard(docType constants.DocumentType, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("parse.step.failed", "document_type", docType, "step", step, "panic", r)
		}
	}()
	fn()
}

func inferCoverage(doc document, f *Fields) {
	if f.Has(FieldCoverageType) {
		return
	}
	if strings.Contains(doc.flat, "CTPL") || strings.Contains(doc.flat, "COMPULSORY THIRD PARTY") {
		f.Set(FieldCoverageType, "CTPL")
	}
}

var aliasPairs = [][2]Field{
	{FieldSeries, FieldModel},
	{FieldYearModel, FieldYear},
}

func mirrorAliases(f *Fields) {
	for _, pair := range aliasPairs {
		a, b := pair[0], pair[1]
		if v, ok := f.Get(a); ok && !f.Has(b) {
			f.Set(b, v)
		}
		if v, ok := f.Get(b); ok && !f.Has(a) {
			f.Set(a, v)
		}
	}
}
