// Package aggregate totals record amounts per category and origin.
package aggregate

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/cfdi-ledger/constants"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/naming"
)

// RecordSource yields every record of a category.
type RecordSource interface {
	All(ctx context.Context, category string) ([]entity.Record, error)
}

// CategorySource lists the category keys to report on.
type CategorySource interface {
	Keys() []string
}

// Amount is a money total. It renders in JSON as a bare number with two
// decimals, the way amounts are stored on records.
type Amount struct {
	decimal.Decimal
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// OriginTotal is the count and amount attributed to one origin.
type OriginTotal struct {
	Count int    `json:"cantidad"`
	Total Amount `json:"total"`
}

// CategorySummary totals one category. Count includes unreadable entries;
// origin buckets only hold entries whose amount could be read.
type CategorySummary struct {
	Categoria string                  `json:"categoria"`
	Count     int                     `json:"cantidad_facturas"`
	Total     Amount                  `json:"total"`
	Origins   map[string]*OriginTotal `json:"origenes"`
	Error     string                  `json:"error,omitempty"`
}

type Summary struct {
	Details    []CategorySummary `json:"detalles"`
	GrandTotal Amount            `json:"gran_total"`
}

type Service struct {
	records    RecordSource
	categories CategorySource
	canonical  []string
	fallback   string
	logger     *slog.Logger
}

// NewService builds a Service. canonical origins always appear in every
// category summary; fallback receives entries with no usable origin.
func NewService(records RecordSource, categories CategorySource, origins common.OriginConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	canonical := origins.Canonical
	if len(canonical) == 0 {
		canonical = []string{constants.OriginCentrales, constants.OriginCampo}
	}
	fallback := origins.Default
	if fallback == "" {
		fallback = canonical[0]
	}
	return &Service{
		records:    records,
		categories: categories,
		canonical:  canonical,
		fallback:   fallback,
		logger:     logger,
	}
}

// Summary recomputes every category from the store.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	out := &Summary{Details: []CategorySummary{}}
	grand := decimal.Zero
	for _, key := range s.categories.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs := s.Category(ctx, key)
		grand = grand.Add(cs.Total.Decimal)
		out.Details = append(out.Details, cs)
	}
	out.GrandTotal = Amount{grand.Round(2)}
	return out, nil
}

// Category totals one category. A category that cannot be listed reports
// zero with the error message attached.
func (s *Service) Category(ctx context.Context, category string) CategorySummary {
	cs := CategorySummary{
		Categoria: category,
		Origins:   make(map[string]*OriginTotal, len(s.canonical)),
	}
	for _, o := range s.canonical {
		cs.Origins[o] = &OriginTotal{}
	}

	records, err := s.records.All(ctx, category)
	if err != nil {
		s.logger.Error("category skipped", "category", category, "error", err)
		cs.Error = err.Error()
		return cs
	}
	cs.Count = len(records)
	total := decimal.Zero
	sums := make(map[string]decimal.Decimal, len(s.canonical))
	for _, rec := range records {
		if rec.Status == constants.StatusError {
			s.logger.Warn("amount unavailable", "category", category, "archivo", rec.Archivo, "error", rec.ErrorMsg)
			continue
		}
		amount := s.amount(rec)
		origin := s.originOf(rec)
		bucket, ok := cs.Origins[origin]
		if !ok {
			bucket = &OriginTotal{}
			cs.Origins[origin] = bucket
		}
		bucket.Count++
		sums[origin] = sums[origin].Add(amount)
		total = total.Add(amount)
	}

	cs.Total = Amount{total.Round(2)}
	for o, sum := range sums {
		cs.Origins[o].Total = Amount{sum.Round(2)}
	}
	return cs
}

// OriginNames returns canonical origins first, then any others sorted.
func (s *Service) OriginNames(cs CategorySummary) []string {
	names := append([]string(nil), s.canonical...)
	var extra []string
	for o := range cs.Origins {
		if !slices.Contains(s.canonical, o) {
			extra = append(extra, o)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// originOf prefers a canonical origin declared by the record, then the
// name's tag, then the fallback.
func (s *Service) originOf(rec entity.Record) string {
	if slices.Contains(s.canonical, rec.Origen) {
		return rec.Origen
	}
	if tag, ok := naming.Tag(rec.Archivo); ok && tag != "" {
		return tag
	}
	return s.fallback
}

// amount reads subtotal, else total_neto. Unparseable values count as zero.
func (s *Service) amount(rec entity.Record) decimal.Decimal {
	raw := entity.Deref(rec.Subtotal)
	if raw == "" {
		raw = entity.Deref(rec.TotalNeto)
	}
	clean := strings.TrimSpace(strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw))
	if clean == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		s.logger.Warn("unparseable amount", "archivo", rec.Archivo, "value", raw, "error", err)
		return decimal.Zero
	}
	return d
}
