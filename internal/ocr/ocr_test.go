package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

// fakeRunner imitates pdftotext, pdftoppm, magick and tesseract.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call

	pdfText     string
	pdfTextErr  error
	rasterPages int
	rasterErr   error
	magickErr   error
	ocrText     map[string]string // keyed by base name; "*" matches anything
	ocrErr      error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: append([]string(nil), args...)})
	f.mu.Unlock()

	switch name {
	case "pdftotext":
		return []byte(f.pdfText), nil, f.pdfTextErr
	case "pdftoppm":
		if f.rasterErr != nil {
			return nil, []byte("boom"), f.rasterErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= f.rasterPages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "magick":
		if f.magickErr != nil {
			return nil, []byte("no delegate"), f.magickErr
		}
		out := args[len(args)-1]
		return nil, nil, os.WriteFile(out, []byte("png"), 0o600)
	case "tesseract":
		if f.ocrErr != nil {
			return nil, []byte("tesseract missing"), f.ocrErr
		}
		base := filepath.Base(args[0])
		if t, ok := f.ocrText[base]; ok {
			return []byte(t), nil, nil
		}
		return []byte(f.ocrText["*"]), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func (f *fakeRunner) called(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newTestExtractor(t *testing.T, r *fakeRunner) *Extractor {
	t.Helper()
	return NewExtractor(Config{TempDir: t.TempDir()}, discardLogger(), WithRunner(r))
}

func TestExtractText_PDFTextLayerGoodEnough(t *testing.T) {
	r := &fakeRunner{pdfText: "CERTIFICATE OF COVER\nPolicy No: CTPL-2024-778812\nAssured: JUAN DELA CRUZ\n"}
	e := newTestExtractor(t, r)
	path := writeFile(t, "policy.pdf", "%PDF-1.7 body")

	text := e.ExtractText(context.Background(), path, "application/pdf")

	assert.Contains(t, text, "CTPL-2024-778812")
	assert.Empty(t, r.called("pdftoppm"), "no rasterization when the text layer is usable")
}

func TestExtractText_ShortKeywordTextCountsAsUsable(t *testing.T) {
	r := &fakeRunner{pdfText: "DRIVER LICENSE"}
	e := newTestExtractor(t, r)
	path := writeFile(t, "id.pdf", "%PDF-1.4")

	assert.Equal(t, "DRIVER LICENSE", e.ExtractText(context.Background(), path, ""))
	assert.Empty(t, r.called("pdftoppm"))
}

func TestExtractText_PDFFallsBackToOCRAndCleansUp(t *testing.T) {
	r := &fakeRunner{
		pdfText:     "  ",
		rasterPages: 2,
		ocrText: map[string]string{
			"page-1.png": "PAGE ONE TEXT",
			"page-2.png": "PAGE TWO TEXT",
		},
	}
	e := newTestExtractor(t, r)
	path := writeFile(t, "scan.pdf", "%PDF-1.4")

	res, err := e.Extract(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, "PAGE ONE TEXT\n\nPAGE TWO TEXT", res.Text)
	assert.Equal(t, 2, res.Pages)

	raster := r.called("pdftoppm")
	require.Len(t, raster, 1)
	assert.Contains(t, raster[0].args, "-l")
	assert.Contains(t, raster[0].args, "5")

	tmpDir := filepath.Dir(raster[0].args[len(raster[0].args)-1])
	_, statErr := os.Stat(tmpDir)
	assert.True(t, os.IsNotExist(statErr), "raster temp dir should be removed")
}

func TestExtractText_RasterFailureKeepsPrimaryText(t *testing.T) {
	r := &fakeRunner{pdfText: "OR 1234", rasterErr: errors.New("pdftoppm: not found")}
	e := newTestExtractor(t, r)
	path := writeFile(t, "orcr.pdf", "%PDF-1.4")

	assert.Equal(t, "OR 1234", e.ExtractText(context.Background(), path, "application/pdf"))
}

func TestExtractText_PDFEverythingFails(t *testing.T) {
	r := &fakeRunner{pdfTextErr: errors.New("corrupt"), rasterErr: errors.New("corrupt")}
	e := newTestExtractor(t, r)
	path := writeFile(t, "broken.pdf", "not a pdf")

	assert.Equal(t, "", e.ExtractText(context.Background(), path, "application/pdf"))
}

func TestExtractText_ImageUsesPreprocessedCopy(t *testing.T) {
	r := &fakeRunner{ocrText: map[string]string{"prepared.png": "REPUBLIC OF THE PHILIPPINES\nDRIVER'S LICENSE"}}
	e := newTestExtractor(t, r)
	path := writeFile(t, "id.jpg", "jpeg")

	text := e.ExtractText(context.Background(), path, "image/jpeg")
	assert.Contains(t, text, "DRIVER'S LICENSE")

	magick := r.called("magick")
	require.Len(t, magick, 1)
	assert.Equal(t, path, magick[0].args[0])
	assert.Contains(t, magick[0].args, "2000x>")

	prepared := magick[0].args[len(magick[0].args)-1]
	_, statErr := os.Stat(prepared)
	assert.True(t, os.IsNotExist(statErr), "preprocessed copy should be removed")
}

func TestExtractText_ImagePreprocessFailureUsesOriginal(t *testing.T) {
	r := &fakeRunner{magickErr: errors.New("magick: not found"), ocrText: map[string]string{"*": "PLATE ABC 1234"}}
	e := newTestExtractor(t, r)
	path := writeFile(t, "photo.png", "png")

	assert.Equal(t, "PLATE ABC 1234", e.ExtractText(context.Background(), path, ""))
	ocr := r.called("tesseract")
	require.Len(t, ocr, 1)
	assert.Equal(t, path, ocr[0].args[0])
}

func TestExtractText_OCRFailureYieldsEmpty(t *testing.T) {
	r := &fakeRunner{ocrErr: errors.New("exec: tesseract: not found")}
	e := newTestExtractor(t, r)
	path := writeFile(t, "photo.png", "png")

	assert.Equal(t, "", e.ExtractText(context.Background(), path, "image/png"))
}

func TestExtractText_NeverFailsOnOddInput(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	ctx := context.Background()

	assert.Equal(t, "", e.ExtractText(ctx, "", ""))
	assert.Equal(t, "", e.ExtractText(ctx, "/does/not/exist.pdf", ""))
	assert.Equal(t, "", e.ExtractText(ctx, writeFile(t, "notes.docx", "x"), ""))
	assert.Equal(t, "", e.ExtractText(ctx, writeFile(t, "blob", "x"), "application/zip"))
}

func TestExtract_UnsupportedTypeError(t *testing.T) {
	e := newTestExtractor(t, &fakeRunner{})
	_, err := e.Extract(context.Background(), writeFile(t, "a.txt", "x"), "")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNormalize(t *testing.T) {
	in := "PLATE NO:\tABC  1234\r\n\r\n\r\n\r\nENGINE\fCHASSIS   "
	got := Normalize(in)
	assert.Equal(t, "PLATE NO: ABC 1234\n\nENGINE\n\nCHASSIS", got)
	assert.False(t, strings.Contains(got, "\r"))
}

func TestCommandRunner_MissingTool(t *testing.T) {
	r := commandRunner{logger: discardLogger()}
	_, _, err := r.Run(context.Background(), "vc-ocr-tool-that-does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolMissing)
	assert.Contains(t, err.Error(), "vc-ocr-tool-that-does-not-exist")
}
