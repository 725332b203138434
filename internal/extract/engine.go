// Package extract turns the text of one invoice or payroll page into Fields.
//
// Extraction is a fixed sequence of heuristics. A global pass over the whole
// text seeds the folio and the tax IDs; per-line strategies then fill or
// refine the rest. Some fields keep their first value and others take the
// last one seen, because layouts repeat amounts across summary and detail
// sections while labels tend to precede the value that matters.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/textsource"
)

// Engine applies the strategy table to page text. It is safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
	rules  []rule
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, rules: defaultRules()}
}

// ExtractText splits text on newlines and runs Extract.
func (e *Engine) ExtractText(text string) entity.Fields {
	if text == "" {
		return entity.Fields{}
	}
	return e.Extract(strings.Split(text, "\n"))
}

// Extract never panics; whatever was gathered before a failure is returned.
func (e *Engine) Extract(lines []string) (fields entity.Fields) {
	st := &state{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction aborted", "panic", fmt.Sprint(r))
			fields = st.fields
		}
	}()
	if len(lines) == 0 {
		return entity.Fields{}
	}

	text := strings.Join(lines, "\n")
	st.globalPass(text)
	st.refineRecipient(lines)
	st.repairCollision()

	for _, raw := range lines {
		ln := newLine(raw)
		for _, r := range e.rules {
			slot := r.slot(&st.fields)
			if r.policy == firstWins && *slot != nil {
				continue
			}
			if r.policy == overSeed && st.ruled[slot] {
				continue
			}
			if out := e.try(r, st, ln); out.ok {
				st.set(slot, out.value)
			}
		}
	}
	return st.fields
}

// ExtractDocument reads page text through src. Decoder failures are logged
// and give empty fields, as does an image-only page.
func (e *Engine) ExtractDocument(ctx context.Context, src textsource.Source, content []byte) entity.Fields {
	lines, err := src.PageLines(ctx, content)
	if err != nil {
		e.logger.Warn("document text unavailable", "error", err, "bytes", len(content))
		return entity.Fields{}
	}
	if len(lines) == 0 {
		e.logger.Debug("page has no text layer")
		return entity.Fields{}
	}
	return e.Extract(lines)
}

// try runs one strategy; a panic inside it is a miss for this line only.
func (e *Engine) try(r rule, st *state, ln line) (out outcome) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Debug("strategy failed", "rule", r.name, "panic", fmt.Sprint(p))
			out = miss
		}
	}()
	return r.apply(st, ln)
}
