package textsource

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// xTolerance is the horizontal gap, in points, above which two glyph runs
// on one row are treated as separate words.
const xTolerance = 2.0

// PDFSource decodes PDFs in-process with ledongthuc/pdf.
type PDFSource struct {
	logger *slog.Logger
}

func NewPDFSource(logger *slog.Logger) *PDFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFSource{logger: logger}
}

// PageLines returns the rows of page 1, top to bottom.
func (s *PDFSource) PageLines(_ context.Context, content []byte) (lines []string, err error) {
	// the decoder panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("decode pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}
	if doc.NumPage() < 1 {
		return nil, nil
	}
	page := doc.Page(1)
	if page.V.IsNull() {
		return nil, nil
	}

	rows, err := page.GetTextByRow()
	if err == nil {
		lines = rowLines(rows)
	} else {
		s.logger.Debug("row extraction failed, using plain text", "error", err)
	}
	if len(lines) == 0 {
		plain, perr := page.GetPlainText(nil)
		if perr != nil {
			return nil, fmt.Errorf("page 1: %w", perr)
		}
		lines = Lines(plain)
	}
	return lines, nil
}

func rowLines(rows pdf.Rows) []string {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
	var text strings.Builder
	for _, row := range rows {
		texts := append([]pdf.Text(nil), row.Content...)
		sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })
		var b strings.Builder
		end := 0.0
		for _, t := range texts {
			if b.Len() > 0 && t.X-end > xTolerance {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			end = t.X + t.W
		}
		text.WriteString(b.String())
		text.WriteByte('\n')
	}
	return Lines(text.String())
}
