package categories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeysFlattenGroups(t *testing.T) {
	keys := Default().Keys()
	assert.Equal(t, []string{
		"Honorarios", "Depreciación", "Servicios", "Fletes",
		"Papelería y Útiles", "Comunicaciones y Radios", "Equipo de Cómputo",
		"Capacitación", "Seguridad", "Seguros", "Trabajos Previos",
	}, keys)
	assert.True(t, Default().Contains("Equipo de Cómputo"))
	assert.False(t, Default().Contains("V. Gastos de Oficina"))
}

func TestLoadMissingFileUsesDefault(t *testing.T) {
	tree, err := Load(filepath.Join(t.TempDir(), "categories_config.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Keys(), tree.Keys())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories_config.json")
	data := `[
  {"name": "I. Honorarios", "key": "Honorarios"},
  {"name": "II. Oficina", "isGroup": true, "subItems": [
    {"name": "a. Papelería", "key": "Papelería"}
  ]}
]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tree, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Honorarios", "Papelería"}, tree.Keys())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	data := `
- name: I. Fletes
  key: Fletes
- name: II. Grupo
  isGroup: true
  subItems:
    - name: a. Radios
      key: Radios
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tree, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fletes", "Radios"}, tree.Keys())
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tree, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Keys(), tree.Keys())
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New([]Item{{Name: "x", Key: "../etc"}})
	assert.Error(t, err)
	_, err = New([]Item{{Name: "a", Key: "A"}, {Name: "b", Key: "A"}})
	assert.Error(t, err)
}

type recordingEnsurer struct{ got []string }

func (r *recordingEnsurer) EnsureNamespace(_ context.Context, ns string) error {
	r.got = append(r.got, ns)
	return nil
}

func TestEnsureNamespaces(t *testing.T) {
	rec := &recordingEnsurer{}
	require.NoError(t, Default().EnsureNamespaces(context.Background(), rec))
	assert.Equal(t, Default().Keys(), rec.got)
}
