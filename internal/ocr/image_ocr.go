package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	src := path
	var warns []string
	if prepared, cleanup, err := e.preprocess(ctx, path); err != nil {
		e.logger.Debug("image preprocessing skipped", "path", path, "error", err)
	} else {
		defer cleanup()
		src = prepared
	}

	txt, w, err := e.tesseractOCR(ctx, src)
	warns = append(warns, w...)
	if err != nil {
		return ExtractionResult{Warnings: warns}, err
	}
	return ExtractionResult{
		Text:     Normalize(txt),
		Pages:    1,
		Method:   "image-ocr",
		Warnings: warns,
	}, nil
}

// preprocess writes a grayscale, normalized, sharpened copy no wider than
// 2000px. The returned cleanup removes it.
func (e *Extractor) preprocess(ctx context.Context, path string) (string, func(), error) {
	if e.cfg.Magick == "none" {
		return "", nil, fmt.Errorf("preprocessing disabled")
	}
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "vc-img-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}
	out := filepath.Join(tmpDir, "prepared.png")

	// magick <in> -colorspace Gray -normalize -sharpen 0x1 -resize 2000x> <out>
	_, errb, err := e.runner.Run(ctx, e.cfg.Magick, path,
		"-colorspace", "Gray", "-normalize", "-sharpen", "0x1", "-resize", "2000x>", out)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("magick: %w: %s", err, truncate(string(errb), 512))
	}
	if _, statErr := os.Stat(out); statErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("preprocessing produced no output: %w", statErr)
	}
	return out, cleanup, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}
