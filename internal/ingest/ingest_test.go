package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

func write(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))
	return p
}

func TestGuessType(t *testing.T) {
	tests := map[string]constants.DocumentType{
		"ctpl.pdf":               constants.DocInsuranceCert,
		"OR-CR scan.jpg":         constants.DocRegistrationCert,
		"emission_test_2024.png": constants.DocEmissionCert,
		"owner valid id.jpeg":    constants.DocOwnerID,
		"hpg.pdf":                constants.DocHPGClearance,
		"IMG_0042.jpg":           constants.DocOther,
	}
	for name, want := range tests {
		assert.Equal(t, want, GuessType(name), name)
	}
}

func TestIngestPath(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryStore().Repositories()
	ing := NewFSIngestor(repos.Documents, nil)
	dir := t.TempDir()
	vid := uuid.New()

	res, err := ing.IngestPath(ctx, write(t, dir, "ctpl.pdf"), "", &vid)
	require.NoError(t, err)
	assert.Equal(t, constants.DocInsuranceCert, res.Type)

	docs, err := repos.Documents.ListByVehicle(ctx, vid)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "application/pdf", docs[0].MIMEType)
	assert.Equal(t, "ctpl.pdf", docs[0].OriginalFilename)

	_, err = ing.IngestPath(ctx, write(t, dir, "notes.txt"), "", nil)
	assert.Error(t, err)
	_, err = ing.IngestPath(ctx, filepath.Join(dir, "missing.pdf"), "", nil)
	assert.Error(t, err)
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	repos := repository.NewMemoryStore().Repositories()
	dir := t.TempDir()
	write(t, dir, "orcr.pdf")
	write(t, dir, "nested/insurance.jpg")
	write(t, dir, "readme.txt")
	write(t, dir, ".cache/hpg.pdf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.png"), nil, 0o600))

	results, stats, err := NewFSIngestor(repos.Documents, nil).IngestDirectory(ctx, dir, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 3)
}
