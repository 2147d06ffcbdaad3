package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var pdfMagic = []byte("%PDF")

// domain words that mark a text layer as usable even when it is short
var qualityKeywords = []string{"LICENSE", "ID", "PASSPORT", "DRIVER", "NAME", "ADDRESS", "NUMBER"}

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	e.checkPDFHeader(path)

	text, pages, warns, err := e.pdfToText(ctx, path)
	if err != nil {
		e.logger.Warn("pdftotext failed, trying ocr", "path", path, "error", err)
	}
	text = Normalize(text)
	if err == nil && textLooksUsable(text) {
		return ExtractionResult{Text: text, Pages: pages, Method: "pdf-text", Warnings: warns}, nil
	}

	ocrText, ocrPages, ocrWarns, ocrErr := e.pdfToOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	ocrText = Normalize(ocrText)
	if ocrErr == nil && ocrText != "" {
		return ExtractionResult{Text: ocrText, Pages: ocrPages, Method: "pdf-ocr", Warnings: warns}, nil
	}
	if ocrErr != nil {
		e.logger.Warn("pdf ocr fallback failed", "path", path, "error", ocrErr)
	}

	// whatever the text layer gave us beats nothing
	if text != "" {
		return ExtractionResult{Text: text, Pages: pages, Method: "pdf-text", Warnings: warns}, nil
	}
	return ExtractionResult{Warnings: warns}, errors.Join(err, ocrErr, ErrNoText)
}

// checkPDFHeader logs, but does not reject, files that are empty or lack a PDF signature.
func (e *Extractor) checkPDFHeader(path string) {
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("cannot open pdf for header check", "path", path, "error", err)
		return
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(f, head)
	switch {
	case n == 0:
		e.logger.Warn("pdf file is empty", "path", path, "error", ErrEmptyFile)
	case err != nil || !bytes.Equal(head, pdfMagic):
		e.logger.Warn("file does not carry a pdf signature", "path", path)
	}
}

func textLooksUsable(text string) bool {
	if len(text) > 50 {
		return true
	}
	upper := strings.ToUpper(text)
	for _, kw := range qualityKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// a form-feed separates pages
	pages = 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "vc-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RasterTimeout)
	defer cancel()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png -f 1 -l <max> <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(rctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png",
		"-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages),
		path, prefix)
	if err != nil {
		if rctx.Err() != nil {
			err = fmt.Errorf("rasterize timed out after %s: %w", e.cfg.RasterTimeout, rctx.Err())
		}
		return "", 0, []string{string(errb)}, err
	}

	// prefix-1.png, prefix-2.png, ... (zero-padded when the document is long)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var texts []string
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if t := strings.TrimSpace(txt); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n"), len(matches), warns, nil
}
