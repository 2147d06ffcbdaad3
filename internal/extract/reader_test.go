package extract

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
)

type stubText struct {
	text      string
	gotPath   string
	gotMIME   string
	callCount int
}

func (s *stubText) ExtractText(_ context.Context, path, mimeType string) string {
	s.callCount++
	s.gotPath, s.gotMIME = path, mimeType
	return s.text
}

func TestDocumentReader_Read(t *testing.T) {
	tx := &stubText{text: "Policy No: CTPL-2024-000981\nPlate No: NAB 4521\n"}
	r := NewDocumentReader(tx, parse.New(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))

	doc := entity.Document{ID: uuid.New(), StoragePath: "/uploads/abc", OriginalFilename: "COC.PDF"}
	res := r.Read(context.Background(), doc, constants.DocInsuranceCert)

	assert.Equal(t, "/uploads/abc", tx.gotPath)
	assert.Equal(t, "application/pdf", tx.gotMIME, "mime inferred from the original filename")
	assert.Equal(t, doc.ID, res.DocumentID)
	assert.Equal(t, "CTPL-2024-000981", res.Fields.Value(parse.FieldPolicyNumber))
	assert.Equal(t, "NAB 4521", res.Fields.Value(parse.FieldPlateNumber))
}

func TestDocumentReader_ReadEmptyText(t *testing.T) {
	tx := &stubText{}
	r := NewDocumentReader(tx, parse.New(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))

	doc := entity.Document{ID: uuid.New(), StoragePath: "/uploads/x.png", MIMEType: "image/png"}
	res := r.Read(context.Background(), doc, constants.DocOwnerID)

	assert.Equal(t, "image/png", tx.gotMIME)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Fields.Len())
	assert.Equal(t, 1, tx.callCount)
}
