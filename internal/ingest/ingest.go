// Package ingest feeds documents from local directories into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/joseph-ayodele/cfdi-ledger/constants"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
)

// Creator is the store behaviour ingest depends on.
type Creator interface {
	CreateFromDocument(ctx context.Context, category, origin, name string, content []byte) (string, error)
}

// FileResult is the per-file ingest outcome.
type FileResult struct {
	Path         string `json:"path"`
	Archivo      string `json:"archivo,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	HashHex      string `json:"hash,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Target says where imported documents land.
type Target struct {
	Category string
	Origin   string
	// Consume removes each source file once it is stored.
	Consume bool
}

type Importer struct {
	store  Creator
	logger *slog.Logger
}

func NewImporter(store Creator, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// ImportFile stores one document under the target category and origin.
func (i *Importer) ImportFile(ctx context.Context, path string, to Target) (FileResult, error) {
	out := FileResult{Path: path}
	if !constants.IsDocument(path) {
		return out, common.InvalidInput("unsupported extension %q", filepath.Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return out, common.IOFailure("read source", err)
	}
	return i.importContent(ctx, path, content, xxhash.Sum64(content), to)
}

// importContent stores content already read from path.
func (i *Importer) importContent(ctx context.Context, path string, content []byte, sum uint64, to Target) (FileResult, error) {
	out := FileResult{Path: path, HashHex: strconv.FormatUint(sum, 16)}
	archivo, err := i.store.CreateFromDocument(ctx, to.Category, to.Origin, filepath.Base(path), content)
	if err != nil {
		return out, err
	}
	out.Archivo = archivo
	if to.Consume {
		if err := os.Remove(path); err != nil {
			i.logger.Warn("source not removed", "path", path, "error", err)
		}
	}
	return out, nil
}

// ImportDirectory walks root, skips hidden entries if requested, and
// imports each document. Byte-identical files are imported once per walk.
func (i *Importer) ImportDirectory(ctx context.Context, root string, to Target, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	seen := map[uint64]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsDocument(path) {
			return nil
		}
		stats.Matched++

		content, err := os.ReadFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		sum := xxhash.Sum64(content)
		if first, ok := seen[sum]; ok {
			i.logger.Debug("duplicate skipped", "path", path, "first", first)
			results = append(results, FileResult{Path: path, Deduplicated: true, HashHex: strconv.FormatUint(sum, 16)})
			stats.Deduplicated++
			return nil
		}

		r, err := i.importContent(ctx, path, content, sum, to)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		seen[sum] = path
		results = append(results, r)
		stats.Succeeded++
		return nil
	})

	i.logger.Info("directory imported",
		"root", root,
		"category", to.Category,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
