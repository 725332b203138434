package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/textsource"
)

func extract(lines ...string) entity.Fields {
	return NewEngine(nil).Extract(lines)
}

func TestExtract_IssuerAndRecipientOnSeparateLines(t *testing.T) {
	f := extract("RFC Emisor: ABC010101AAA", "Receptor: XYZ020202BBB")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCReceptor))
}

func TestExtract_SubtotalStripsCurrency(t *testing.T) {
	f := extract("Subtotal $1,234.56")
	require.NotNil(t, f.Subtotal)
	assert.Equal(t, "1234.56", *f.Subtotal)
}

func TestExtract_ExplicitSubtotalOverridesImporte(t *testing.T) {
	f := extract("Importe 50.00", "Concepto servicio", "Subtotal 75.00")
	assert.Equal(t, "75.00", entity.Deref(f.Subtotal))

	// the fallback never replaces a labelled value
	f = extract("Subtotal 75.00", "Importe 50.00")
	assert.Equal(t, "75.00", entity.Deref(f.Subtotal))

	// "importe total" is not a subtotal
	f = extract("Importe total 99.00")
	assert.Nil(t, f.Subtotal)
}

func TestExtract_SubtotalMustBePositive(t *testing.T) {
	f := extract("Subtotal 0.00")
	assert.Nil(t, f.Subtotal)
}

func TestExtract_LabelledRFCBeatsPosition(t *testing.T) {
	f := extract("Folio AAA010101AA1 referencia", "R.F.C.: ABC010101AAA")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
}

func TestExtract_IssuerLabelBeatsEarlierDecoy(t *testing.T) {
	f := extract("Folio DEF030303CCC", "RFC Emisor: ABC010101AAA", "Receptor: XYZ020202BBB")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCReceptor))
}

func TestExtract_SecondaryLabelNeverReplacesPrimary(t *testing.T) {
	f := extract("R.F.C.: ABC010101AAA", "RFC Emisor: DEF030303CCC")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
}

func TestExtract_LabelIgnoredOnRecipientLines(t *testing.T) {
	f := extract("Emisor sin clave", "Cliente RFC: XYZ020202BBB")
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCEmisor), "positional seed stays")
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCReceptor))
}

func TestExtract_RecipientOnNextLine(t *testing.T) {
	f := extract("ABC010101AAA", "Facturar a", "  XYZ020202BBB  ", "QRS030303CCC")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCReceptor))
}

func TestExtract_CollisionRepair(t *testing.T) {
	f := extract("ABC010101AAA", "XYZ020202BBB", "Receptor: ABC010101AAA")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCEmisor))
	assert.Equal(t, "XYZ020202BBB", entity.Deref(f.RFCReceptor))

	// the repair only looks at the first two matches, so a repeated issuer
	// ID keeps the collision
	f = extract("ABC010101AAA", "ABC010101AAA", "XYZ020202BBB", "Receptor: ABC010101AAA")
	assert.Equal(t, "ABC010101AAA", entity.Deref(f.RFCReceptor))
}

func TestExtract_Folio(t *testing.T) {
	f := extract("Folio fiscal: 6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8 serie A")
	assert.Equal(t, "6f1c2b3a-4d5e-6f70-8192-a3b4c5d6e7f8", entity.Deref(f.FolioFiscal))
}

func TestExtract_IssuerName(t *testing.T) {
	f := extract("Nombre Emisor: COMERCIALIZADORA DEL NORTE SA DE CV RFC: CDN010101AB1")
	assert.Equal(t, "COMERCIALIZADORA DEL NORTE SA DE CV", entity.Deref(f.NombreEmisor))
	assert.Equal(t, "CDN010101AB1", entity.Deref(f.RFCEmisor))

	f = extract("CDN010101AB1", "RFC: CDN010101AB1 CONSTRUCTORA PONIENTE")
	assert.Equal(t, "CONSTRUCTORA PONIENTE", entity.Deref(f.NombreEmisor))
}

func TestExtract_RecipientName(t *testing.T) {
	f := extract("Trabajador: JUAN PEREZ LOPEZ")
	assert.Equal(t, "JUAN PEREZ LOPEZ", entity.Deref(f.NombreReceptor))

	f = extract("Empleado: Sueldo base", "Pago de Nómina MARTA RUIZ SOTO")
	assert.Equal(t, "MARTA RUIZ SOTO", entity.Deref(f.NombreReceptor))

	f = extract("Empleado: 12345 ABCDEF")
	assert.Nil(t, f.NombreReceptor)
}

func TestExtract_Puesto(t *testing.T) {
	f := extract("Puesto: AUXILIAR CONTABLE Fecha de ingreso 01/01/2020")
	assert.Equal(t, "AUXILIAR CONTABLE", entity.Deref(f.Puesto))

	f = extract("Categoría: OPERADOR", "Puesto: GERENTE")
	assert.Equal(t, "OPERADOR", entity.Deref(f.Puesto))
}

func TestExtract_TotalDeducciones(t *testing.T) {
	f := extract("Total Deducciones 2019 $1,450.00")
	assert.Equal(t, "1450.00", entity.Deref(f.TotalDeducciones))

	f = extract("Total deducciones 123")
	assert.Nil(t, f.TotalDeducciones)

	// later lines overwrite
	f = extract("Total deducciones 10.00", "Total deducciones 20.00")
	assert.Equal(t, "20.00", entity.Deref(f.TotalDeducciones))
}

func TestExtract_NetoFirstLineWins(t *testing.T) {
	f := extract("Neto a pagar: 9,876.50", "Neto 1.00")
	assert.Equal(t, "9876.50", entity.Deref(f.TotalNeto))

	// a keyword line without a decimal does not lock the field
	f = extract("Líquido", "Alcance líquido 3,000.10")
	assert.Equal(t, "3000.10", entity.Deref(f.TotalNeto))
}

func TestExtract_EveryFieldAlwaysPresent(t *testing.T) {
	raw, err := json.Marshal(NewEngine(nil).ExtractText(""))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Len(t, got, len(entity.FieldNames))
	for _, name := range entity.FieldNames {
		v, ok := got[name]
		assert.True(t, ok, name)
		assert.Nil(t, v, name)
	}
}

func TestExtract_NeverPanicsAndIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"[[[ ]]] $$$ ,,, ...",
		"RFC:",
		"rfc emisor",
		"Nombre emisor:",
		"Receptor:",
		"Puesto:",
		"Total deducciones ,,,,",
		"subtotal $,.00",
		"ÑÑÑ000000ÑÑÑ ÑAB010101AAA recibí de: ",
		strings.Repeat("Neto a pagar 1.00 ", 200),
		"\x00\xff\xfe invalid utf8",
	}
	e := NewEngine(nil)
	for _, in := range inputs {
		require.NotPanics(t, func() {
			first := e.ExtractText(in)
			second := e.ExtractText(in)
			assert.Equal(t, first, second, in)
		}, in)
	}
}

func TestExtractDocument(t *testing.T) {
	e := NewEngine(nil)
	ctx := context.Background()

	failing := textsource.SourceFunc(func(context.Context, []byte) ([]string, error) {
		return nil, errors.New("xref table broken")
	})
	assert.True(t, e.ExtractDocument(ctx, failing, []byte("x")).IsEmpty())

	imageOnly := textsource.SourceFunc(func(context.Context, []byte) ([]string, error) {
		return nil, nil
	})
	assert.True(t, e.ExtractDocument(ctx, imageOnly, []byte("x")).IsEmpty())

	text := textsource.SourceFunc(func(_ context.Context, content []byte) ([]string, error) {
		return strings.Split(string(content), "\n"), nil
	})
	f := e.ExtractDocument(ctx, text, []byte("Subtotal 10.00\nNeto a pagar 8.50"))
	assert.Equal(t, "10.00", entity.Deref(f.Subtotal))
	assert.Equal(t, "8.50", entity.Deref(f.TotalNeto))
}

func TestTry_RecoversStrategyPanic(t *testing.T) {
	e := NewEngine(nil)
	boom := rule{name: "boom", apply: func(*state, line) outcome { panic("index out of range") }}
	assert.Equal(t, miss, e.try(boom, &state{}, newLine("x")))
}
