package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Magick    string // image preprocessor; "none" disables preprocessing

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 300

	MaxPages      int           // pages rasterized for OCR fallback, default 5
	RasterTimeout time.Duration // default 30s
	TempDir       string        // "" = os.TempDir()
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrEmptyFile       = errors.New("file is empty")
	ErrNoText          = errors.New("no text extracted")
)

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Magick == "" {
		cfg.Magick = "magick"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.RasterTimeout <= 0 {
		cfg.RasterTimeout = 30 * time.Second
	}
	e := &Extractor{cfg: cfg, runner: commandRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ExtractText returns the best-effort text of the file at path. It never
// fails: unsupported types, missing tools and unreadable files yield "".
// An empty mimeType is inferred from the file extension.
func (e *Extractor) ExtractText(ctx context.Context, path, mimeType string) string {
	res, err := e.Extract(ctx, path, mimeType)
	if err != nil {
		e.logger.Warn("ocr.extract.degraded", "path", path, "mime", mimeType, "error", err)
		return ""
	}
	return res.Text
}

// Extract picks a strategy based on the MIME type (or the extension when
// mimeType is empty) and reports failures as errors.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (ExtractionResult, error) {
	start := time.Now()
	if mimeType == "" {
		mimeType = constants.MIMEFromExt(filepath.Ext(path))
	}
	format := constants.MapMIMEToFormat(mimeType)
	e.logger.Debug("starting ocr extraction", "path", path, "mime", mimeType, "format", format)

	if format == "" {
		return ExtractionResult{}, fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}
	if _, err := os.Stat(path); err != nil {
		return ExtractionResult{SourceType: format}, fmt.Errorf("stat %s: %w", path, err)
	}

	var (
		res ExtractionResult
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	}
	res.SourceType = format
	res.Language = e.cfg.TesseractLang
	res.Duration = time.Since(start)
	if err == nil && res.Text == "" {
		err = ErrNoText
	}
	if err == nil {
		e.logger.Info("ocr.extract.ok",
			"path", path,
			"method", res.Method,
			"pages", res.Pages,
			"chars", len(res.Text),
			"elapsed_ms", res.Duration.Milliseconds(),
		)
	}
	return res, err
}
