package extract

import (
	"context"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
)

// TextExtractor is stage 1: file -> text. Implementations never fail; an
// unreadable file yields "".
type TextExtractor interface {
	ExtractText(ctx context.Context, path, mimeType string) string
}

// FieldParser is stage 2: text -> fields.
type FieldParser interface {
	Parse(text string, docType constants.DocumentType) parse.Fields
}
