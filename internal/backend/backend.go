// Package backend provides the namespace key-value stores behind the record
// store. A namespace is a category key; an entry is a named blob within it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/naming"
)

// ErrNotExist is returned when an entry is absent from its namespace.
var ErrNotExist = errors.New("entry does not exist")

// Backend is a flat key-value store partitioned by namespace.
// Rename replaces any entry already stored under newName.
type Backend interface {
	EnsureNamespace(ctx context.Context, namespace string) error
	Names(ctx context.Context, namespace string) ([]string, error)
	Read(ctx context.Context, namespace, name string) ([]byte, error)
	Write(ctx context.Context, namespace, name string, data []byte) error
	Rename(ctx context.Context, namespace, oldName, newName string) error
	Remove(ctx context.Context, namespace, name string) error
	Exists(ctx context.Context, namespace, name string) (bool, error)
	Close() error
}

// Open builds the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Store.Backend {
	case common.BackendFS:
		return NewFS(cfg.Store.DataDir, logger), nil
	case common.BackendSQLite:
		return OpenSQLite(ctx, cfg.Store.SQLitePath, logger)
	case common.BackendPostgres:
		return OpenPostgres(ctx, cfg.Database, logger)
	case common.BackendS3:
		return OpenS3(ctx, cfg.S3, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown backend %q", cfg.Store.Backend), common.ErrInvalidInput)
	}
}

// checkKey rejects namespaces and names that are not single path segments.
func checkKey(namespace string, names ...string) error {
	if !naming.SafeSegment(namespace) {
		return common.InvalidInput("invalid namespace %q", namespace)
	}
	for _, n := range names {
		if !naming.SafeSegment(n) {
			return common.InvalidInput("invalid entry name %q", n)
		}
	}
	return nil
}
