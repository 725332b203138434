package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-ledger/constants"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

type fakeRecords map[string][]entity.Record

func (f fakeRecords) All(_ context.Context, category string) ([]entity.Record, error) {
	if category == "Roto" {
		return nil, errors.New("disk on fire")
	}
	return f[category], nil
}

type fakeKeys []string

func (k fakeKeys) Keys() []string { return k }

var origins = common.OriginConfig{
	Canonical: []string{"Centrales", "Campo"},
	Default:   "Centrales",
}

func ok(archivo, origen, subtotal, neto string) entity.Record {
	rec := entity.Record{Archivo: archivo, Origen: origen, Status: constants.StatusSuccess}
	if subtotal != "" {
		rec.Subtotal = entity.StrPtr(subtotal)
	}
	if neto != "" {
		rec.TotalNeto = entity.StrPtr(neto)
	}
	return rec
}

func TestSummaryTotalsPerOriginAndCategory(t *testing.T) {
	records := fakeRecords{
		"Fletes": {
			ok("[Campo] a.pdf", "Campo", "$1,200.50", ""),
			ok("[Centrales] b.json", "Centrales", "", "99.499"),
			ok("c.pdf", "Desconocido", "10", ""),
			ok("[Bodega] d.pdf", "Bodega", "5.00", ""),
		},
		"Seguros": {
			ok("[Campo] e.json", "Campo", "0.10", ""),
			ok("[Campo] f.json", "Campo", "0.20", ""),
		},
	}
	svc := NewService(records, fakeKeys{"Fletes", "Seguros", "Vacia"}, origins, nil)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Details, 3)

	fletes := sum.Details[0]
	assert.Equal(t, "Fletes", fletes.Categoria)
	assert.Equal(t, 4, fletes.Count)
	assert.Equal(t, "1315.00", fletes.Total.StringFixed(2))
	assert.Equal(t, 1, fletes.Origins["Campo"].Count)
	assert.Equal(t, "1200.50", fletes.Origins["Campo"].Total.StringFixed(2))
	// untagged names fall to the default origin
	assert.Equal(t, 2, fletes.Origins["Centrales"].Count)
	assert.Equal(t, "109.50", fletes.Origins["Centrales"].Total.StringFixed(2))
	assert.Equal(t, 1, fletes.Origins["Bodega"].Count)
	assert.Equal(t, []string{"Centrales", "Campo", "Bodega"}, svc.OriginNames(fletes))

	seguros := sum.Details[1]
	assert.Equal(t, "0.30", seguros.Total.StringFixed(2))
	assert.Equal(t, 0, seguros.Origins["Centrales"].Count)

	vacia := sum.Details[2]
	assert.Zero(t, vacia.Count)
	assert.True(t, vacia.Total.IsZero())
	assert.Contains(t, vacia.Origins, "Centrales")
	assert.Contains(t, vacia.Origins, "Campo")

	assert.Equal(t, "1315.30", sum.GrandTotal.StringFixed(2))
}

func TestSummaryJSONRendersTwoDecimalNumbers(t *testing.T) {
	records := fakeRecords{"Fletes": {
		ok("[Campo] a.pdf", "Campo", "100", ""),
		ok("[Centrales] b.pdf", "Centrales", "0.5", ""),
	}}
	svc := NewService(records, fakeKeys{"Fletes"}, origins, nil)
	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(sum)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"gran_total":100.50`)
	assert.Contains(t, out, `"Campo":{"cantidad":1,"total":100.00}`)
	assert.Contains(t, out, `"Centrales":{"cantidad":1,"total":0.50}`)

	var back Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "100.50", back.GrandTotal.StringFixed(2))
}

func TestCanonicalPayloadOriginBeatsTag(t *testing.T) {
	records := fakeRecords{"Fletes": {
		ok("[Campo] a.json", "Centrales", "1", ""),
		ok("[Campo] b.json", "Oficina", "2", ""),
	}}
	svc := NewService(records, fakeKeys{"Fletes"}, origins, nil)

	cs := svc.Category(context.Background(), "Fletes")
	assert.Equal(t, 1, cs.Origins["Centrales"].Count)
	assert.Equal(t, 1, cs.Origins["Campo"].Count)
	assert.NotContains(t, cs.Origins, "Oficina")
}

func TestBadAmountsAndErrorsDoNotAbort(t *testing.T) {
	broken := entity.Record{Archivo: "[Campo] x.json", Status: constants.StatusError, ErrorMsg: "bad json"}
	records := fakeRecords{"Fletes": {
		ok("[Campo] a.pdf", "Campo", "N/A", "7.00"),
		ok("[Campo] b.pdf", "Campo", "", ""),
		broken,
		ok("[Campo] c.pdf", "Campo", "3.25", ""),
	}}
	svc := NewService(records, fakeKeys{"Fletes", "Roto"}, origins, nil)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)

	fletes := sum.Details[0]
	assert.Equal(t, 4, fletes.Count)
	assert.Equal(t, 3, fletes.Origins["Campo"].Count)
	assert.Equal(t, "3.25", fletes.Total.StringFixed(2))

	roto := sum.Details[1]
	assert.Equal(t, "disk on fire", roto.Error)
	assert.True(t, roto.Total.IsZero())
	assert.Equal(t, "3.25", sum.GrandTotal.StringFixed(2))
}

func TestSummaryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(fakeRecords{}, fakeKeys{"Fletes"}, origins, nil)
	_, err := svc.Summary(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
