// Package textsource recovers the text lines of a document's first page.
package textsource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
)

// Source is Stage 1: document bytes -> lines of its first page.
// An image-only page yields (nil, nil).
type Source interface {
	PageLines(ctx context.Context, content []byte) ([]string, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, content []byte) ([]string, error)

func (f SourceFunc) PageLines(ctx context.Context, content []byte) ([]string, error) {
	return f(ctx, content)
}

// New builds the Source selected by cfg.
func New(cfg common.TextConfig, logger *slog.Logger) (Source, error) {
	switch cfg.Source {
	case "", common.TextSourcePDF:
		return NewPDFSource(logger), nil
	case common.TextSourcePdftotext:
		return NewPdftotextSource(cfg.Pdftotext, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown text source %q", cfg.Source), common.ErrInvalidInput)
	}
}
