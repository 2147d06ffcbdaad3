// Package ingest registers document files already on disk, for local runs
// and backfills where no upload layer is involved.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath string                 `json:"source_path"`
	DocumentID uuid.UUID              `json:"document_id,omitempty"`
	Type       constants.DocumentType `json:"type,omitempty"`
	UploadedAt time.Time              `json:"uploaded_at,omitempty"`
	Err        string                 `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32 `json:"scanned"`
	Matched   uint32 `json:"matched"`
	Succeeded uint32 `json:"succeeded"`
	Failed    uint32 `json:"failed"`
}

// FSIngestor creates document records for files on the local filesystem.
type FSIngestor struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{docs: docs, logger: logger}
}

// IngestPath registers one file. An empty docType is guessed from the file
// name. vehicleID may be nil to leave the document unlinked.
func (i *FSIngestor) IngestPath(ctx context.Context, path string, docType constants.DocumentType, vehicleID *uuid.UUID) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{SourcePath: path}, err
	}
	out := Result{SourcePath: abs}

	mime := constants.MIMEFromExt(filepath.Ext(abs))
	if constants.MapMIMEToFormat(mime) == "" {
		return out, fmt.Errorf("unsupported or missing extension %q", filepath.Ext(abs))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return out, err
	}
	if info.IsDir() || info.Size() == 0 {
		return out, errors.New("not a non-empty regular file")
	}
	if docType == "" {
		docType = GuessType(abs)
	}

	d := &entity.Document{
		VehicleID:        vehicleID,
		Type:             docType,
		StoragePath:      abs,
		MIMEType:         mime,
		OriginalFilename: filepath.Base(abs),
	}
	if err := i.docs.Create(ctx, d); err != nil {
		return out, err
	}
	out.DocumentID, out.Type, out.UploadedAt = d.ID, d.Type, d.UploadedAt
	i.logger.Info("ingest.document.ok", "path", abs, "document_id", d.ID, "type", d.Type, "vehicle_id", vehicleID)
	return out, nil
}

// IngestDirectory walks root and registers every supported file, guessing
// each type from its name. Per-file failures are collected, not returned.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, vehicleID *uuid.UUID, skipHidden bool) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || constants.MapMIMEToFormat(constants.MIMEFromExt(filepath.Ext(path))) == "" {
			return nil
		}
		stats.Matched++

		res, err := i.IngestPath(ctx, path, "", vehicleID)
		if err != nil {
			res.Err = err.Error()
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

var reNameSep = regexp.MustCompile(`[^a-z0-9]+`)

// GuessType maps a file name onto a document type using the same synonyms
// accepted for upload tags, e.g. "ctpl.pdf" or "OR-CR scan.jpg".
func GuessType(path string) constants.DocumentType {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	tokens := reNameSep.Split(base, -1)
	for n := 3; n >= 1; n-- {
		for j := 0; j+n <= len(tokens); j++ {
			if t, ok := constants.CanonicalizeDocumentType(strings.Join(tokens[j:j+n], "_")); ok && t != constants.DocOther {
				return t
			}
		}
	}
	return constants.DocOther
}
