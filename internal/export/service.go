package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cfdi-ledger/internal/aggregate"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

// RecordSource yields the records of one category in listing order.
type RecordSource interface {
	All(ctx context.Context, category string) ([]entity.Record, error)
}

// Summarizer computes the aggregate report.
type Summarizer interface {
	Summary(ctx context.Context) (*aggregate.Summary, error)
	OriginNames(cs aggregate.CategorySummary) []string
}

// Service is a tiny façade over the store and the aggregator that produces XLSX bytes.
type Service struct {
	records RecordSource
	summary Summarizer
	logger  *slog.Logger
}

func NewService(records RecordSource, summary Summarizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, summary: summary, logger: logger}
}

const (
	SheetRecords = "Registros"
	SheetSummary = "Resumen"
	SheetOrigins = "Origenes"
)

var recordHeaders = []string{
	"Archivo",
	"Origen",
	"Estado",
	"Folio Fiscal",
	"RFC Emisor",
	"RFC Receptor",
	"Nombre Emisor",
	"Nombre Receptor",
	"Puesto",
	"Subtotal",
	"Total Deducciones",
	"Total Neto",
	"Error",
}

// ExportRecordsXLSX returns a workbook with one row per entry of category.
// Unreadable entries keep their row with the error message filled in.
func (s *Service) ExportRecordsXLSX(ctx context.Context, category string) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.All(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	f, err := newWorkbook(SheetRecords)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	writeRow(f, SheetRecords, 1, toAny(recordHeaders))
	for i, r := range recs {
		row := []any{r.Archivo, r.Origen, string(r.Status)}
		fields := r.Fields.Map()
		for _, name := range entity.FieldNames {
			row = append(row, entity.Deref(fields[name]))
		}
		row = append(row, r.ErrorMsg)
		writeRow(f, SheetRecords, i+2, row)
	}

	_ = f.SetColWidth(SheetRecords, "A", "A", 48) // archivo
	_ = f.SetColWidth(SheetRecords, "B", "C", 14)
	_ = f.SetColWidth(SheetRecords, "D", "I", 28)
	_ = f.SetColWidth(SheetRecords, "J", "L", 16) // amounts
	_ = f.SetColWidth(SheetRecords, "M", "M", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.records.ok",
		"category", category,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportSummaryXLSX writes the aggregate report: category totals on one
// sheet and the per-origin breakdown on another.
func (s *Service) ExportSummaryXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	sum, err := s.summary.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	f, err := newWorkbook(SheetSummary)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.NewSheet(SheetOrigins); err != nil {
		return nil, err
	}

	writeRow(f, SheetSummary, 1, []any{"Categoria", "Facturas", "Total", "Error"})
	writeRow(f, SheetOrigins, 1, []any{"Categoria", "Origen", "Cantidad", "Total"})

	row, orow := 2, 2
	for _, cs := range sum.Details {
		writeRow(f, SheetSummary, row, []any{cs.Categoria, cs.Count, cs.Total.StringFixed(2), cs.Error})
		row++
		for _, origin := range s.summary.OriginNames(cs) {
			ot := cs.Origins[origin]
			writeRow(f, SheetOrigins, orow, []any{cs.Categoria, origin, ot.Count, ot.Total.StringFixed(2)})
			orow++
		}
	}
	writeRow(f, SheetSummary, row, []any{"Gran total", "", sum.GrandTotal.StringFixed(2), ""})

	_ = f.SetColWidth(SheetSummary, "A", "A", 28)
	_ = f.SetColWidth(SheetSummary, "B", "C", 14)
	_ = f.SetColWidth(SheetSummary, "D", "D", 40)
	_ = f.SetColWidth(SheetOrigins, "A", "B", 28)
	_ = f.SetColWidth(SheetOrigins, "C", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.summary.ok",
		"categories", len(sum.Details),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// newWorkbook returns a file whose only and active sheet is named sheet.
func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
