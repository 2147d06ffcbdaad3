package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
)

// Result is what a DocumentReader learned from one stored document.
type Result struct {
	DocumentID uuid.UUID
	Type       constants.DocumentType
	Text       string
	Fields     parse.Fields
	Duration   time.Duration
}

// DocumentReader chains text extraction and field parsing for stored documents.
type DocumentReader struct {
	text   TextExtractor
	parser FieldParser
	logger *slog.Logger
}

func NewDocumentReader(text TextExtractor, parser FieldParser, logger *slog.Logger) *DocumentReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentReader{text: text, parser: parser, logger: logger}
}

// Read extracts and parses doc as docType. It does not fail: an unreadable
// document comes back with empty text and empty fields.
func (r *DocumentReader) Read(ctx context.Context, doc entity.Document, docType constants.DocumentType) Result {
	start := time.Now()
	mime := doc.MIMEType
	if mime == "" {
		mime = constants.MIMEFromExt(filepath.Ext(doc.OriginalFilename))
	}

	text := r.text.ExtractText(ctx, doc.StoragePath, mime)
	fields := r.parser.Parse(text, docType)
	res := Result{
		DocumentID: doc.ID,
		Type:       docType,
		Text:       text,
		Fields:     fields,
		Duration:   time.Since(start),
	}

	if text == "" {
		r.logger.Warn("extract.read.empty", "document_id", doc.ID, "document_type", docType, "path", doc.StoragePath)
		return res
	}
	r.logger.Info("extract.read.ok",
		"document_id", doc.ID,
		"document_type", docType,
		"chars", len(text),
		"fields", fields.Len(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}
