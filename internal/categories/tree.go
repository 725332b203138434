// Package categories loads the category tree: display groups whose leaves
// carry the namespace keys used by the record store.
package categories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/cfdi-ledger/internal/naming"
)

// Item is either a leaf category (Key set) or a group of sub-items.
type Item struct {
	Name     string `json:"name" yaml:"name"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	IsGroup  bool   `json:"isGroup,omitempty" yaml:"isGroup,omitempty"`
	SubItems []Item `json:"subItems,omitempty" yaml:"subItems,omitempty"`
}

// Tree is read-only after Load.
type Tree struct {
	Items []Item
	keys  []string
	index map[string]struct{}
}

// DefaultItems is the structure used when no tree file exists.
func DefaultItems() []Item {
	return []Item{
		{Name: "I. Honorarios, Sueldos y Prestaciones", Key: "Honorarios"},
		{Name: "II. Depreciación, Mantenimiento y Rentas", Key: "Depreciación"},
		{Name: "III. Servicios", Key: "Servicios"},
		{Name: "IV. Fletes y Acarreos", Key: "Fletes"},
		{Name: "V. Gastos de Oficina", IsGroup: true, SubItems: []Item{
			{Name: "a. Papelería y Útiles", Key: "Papelería y Útiles"},
			{Name: "b. Comunicaciones, Fax...", Key: "Comunicaciones y Radios"},
			{Name: "c. Equipo de Cómputo", Key: "Equipo de Cómputo"},
		}},
		{Name: "VI. Gastos de Capacitación y Adiestramiento", Key: "Capacitación"},
		{Name: "VII. Seguridad e Higiene", Key: "Seguridad"},
		{Name: "VIII. Seguros y Fianzas", Key: "Seguros"},
		{Name: "IX. Trabajos Previos y Auxiliares", Key: "Trabajos Previos"},
	}
}

// New validates items and indexes their leaf keys.
func New(items []Item) (*Tree, error) {
	t := &Tree{Items: items, index: make(map[string]struct{})}
	var walk func(it Item) error
	walk = func(it Item) error {
		if it.IsGroup {
			for _, sub := range it.SubItems {
				if err := walk(sub); err != nil {
					return err
				}
			}
			return nil
		}
		if !naming.SafeSegment(it.Key) {
			return fmt.Errorf("category %q: invalid key %q", it.Name, it.Key)
		}
		if _, dup := t.index[it.Key]; dup {
			return fmt.Errorf("duplicate category key %q", it.Key)
		}
		t.index[it.Key] = struct{}{}
		t.keys = append(t.keys, it.Key)
		return nil
	}
	for _, it := range items {
		if err := walk(it); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Default returns the built-in tree.
func Default() *Tree {
	t, err := New(DefaultItems())
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a JSON or YAML tree. A missing file gives the default tree; an
// unreadable one is logged and also gives the default.
func Load(path string, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("category file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category file: %w", err)
	}

	var items []Item
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		logger.Warn("category file unreadable, using defaults", "path", path, "error", err)
		return Default(), nil
	}
	return New(items)
}

// Keys returns the leaf keys in display order.
func (t *Tree) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Contains reports whether key is a leaf of the tree.
func (t *Tree) Contains(key string) bool {
	_, ok := t.index[key]
	return ok
}

// NamespaceEnsurer creates the storage for one namespace.
type NamespaceEnsurer interface {
	EnsureNamespace(ctx context.Context, namespace string) error
}

// EnsureNamespaces prepares storage for every leaf key.
func (t *Tree) EnsureNamespaces(ctx context.Context, b NamespaceEnsurer) error {
	for _, k := range t.keys {
		if err := b.EnsureNamespace(ctx, k); err != nil {
			return fmt.Errorf("ensure namespace %q: %w", k, err)
		}
	}
	return nil
}
