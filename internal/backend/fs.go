package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FS stores each namespace as a directory under root.
type FS struct {
	root   string
	logger *slog.Logger
}

func NewFS(root string, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{root: root, logger: logger}
}

// Root returns the base directory.
func (b *FS) Root() string { return b.root }

// Dir returns the directory backing namespace.
func (b *FS) Dir(namespace string) string { return filepath.Join(b.root, namespace) }

func (b *FS) EnsureNamespace(_ context.Context, namespace string) error {
	if err := checkKey(namespace); err != nil {
		return err
	}
	if err := os.MkdirAll(b.Dir(namespace), 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	return nil
}

// Names lists regular files; a missing directory is an empty namespace.
func (b *FS) Names(_ context.Context, namespace string) ([]string, error) {
	if err := checkKey(namespace); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.Dir(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read namespace dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (b *FS) Read(_ context.Context, namespace, name string) ([]byte, error) {
	if err := checkKey(namespace, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(b.Dir(namespace), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	return data, err
}

func (b *FS) Write(_ context.Context, namespace, name string, data []byte) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	dir := b.Dir(namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (b *FS) Rename(_ context.Context, namespace, oldName, newName string) error {
	if err := checkKey(namespace, oldName, newName); err != nil {
		return err
	}
	dir := b.Dir(namespace)
	err := os.Rename(filepath.Join(dir, oldName), filepath.Join(dir, newName))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotExist
	}
	if err == nil {
		b.logger.Debug("entry renamed", "namespace", namespace, "from", oldName, "to", newName)
	}
	return err
}

func (b *FS) Remove(_ context.Context, namespace, name string) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(b.Dir(namespace), name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotExist
	}
	return err
}

func (b *FS) Exists(_ context.Context, namespace, name string) (bool, error) {
	if err := checkKey(namespace, name); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(b.Dir(namespace), name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (b *FS) Close() error { return nil }
