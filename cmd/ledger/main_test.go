package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-ledger/internal/aggregate"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/store"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "fs")
	t.Setenv("DATA_DIR", filepath.Join(dir, "facturas"))
	t.Setenv("CATEGORIES_FILE", filepath.Join(dir, "missing.json"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a := &app{out: &buf}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	return buf.String(), err
}

func TestCommandsRoundTrip(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "manual", "Fletes", "--origin", "Campo", "--set", "subtotal=10.50", "--set", "rfc_emisor=ABCD010101AB1")
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	archivo := created["archivo"]
	assert.True(t, strings.HasPrefix(archivo, "[Campo] Manual - "), archivo)

	out, err = run(t, "list", "Fletes")
	require.NoError(t, err)
	var page store.ListPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 1, page.Total)
	rec := page.Records[0]
	assert.Equal(t, "Campo", rec.Origen)
	assert.Equal(t, "10.50", entity.Deref(rec.Subtotal))
	assert.Equal(t, "0.00", entity.Deref(rec.TotalNeto))

	out, err = run(t, "set-origin", "Fletes", archivo, "Centrales")
	require.NoError(t, err)
	var renamed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &renamed))
	assert.True(t, strings.HasPrefix(renamed["archivo"], "[Centrales] "))

	out, err = run(t, "summary")
	require.NoError(t, err)
	var sum aggregate.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "10.50", sum.GrandTotal.StringFixed(2))

	out, err = run(t, "edit", "Fletes", renamed["archivo"], "--set", "subtotal=20", "--origin", "Campo")
	require.NoError(t, err)
	var edited map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &edited))
	assert.True(t, strings.HasPrefix(edited["archivo"], "[Campo] "))

	xlsx := filepath.Join(dir, "resumen.xlsx")
	_, err = run(t, "export", "summary", "-o", xlsx)
	require.NoError(t, err)
	assert.FileExists(t, xlsx)

	_, err = run(t, "delete", "Fletes", edited["archivo"])
	require.NoError(t, err)
	out, err = run(t, "count", "Fletes")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 0}`, out)
}

func TestCommandErrors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "list", "NoExiste")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)

	_, err = run(t, "delete", "Fletes", "nada.pdf")
	assert.True(t, common.IsNotFound(err))

	_, err = run(t, "manual", "Fletes", "--set", "color=rojo")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestInvalidConfigStopsStartup(t *testing.T) {
	setupEnv(t)
	t.Setenv("STORE_BACKEND", "tape")

	_, err := run(t, "summary")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeConfig, appErr.Code)
}

func TestApplyAssignments(t *testing.T) {
	fields := entity.Fields{Puesto: entity.StrPtr("Chofer")}
	require.NoError(t, applyAssignments(&fields, []string{"subtotal=1,000.00", "puesto="}))
	assert.Equal(t, "1,000.00", entity.Deref(fields.Subtotal))
	assert.Nil(t, fields.Puesto)

	assert.Error(t, applyAssignments(&fields, []string{"subtotal"}))
}
