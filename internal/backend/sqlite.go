package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	category   TEXT NOT NULL,
	name       TEXT NOT NULL,
	content    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (category, name)
);`

// SQLite keeps every namespace in one table of an embedded database.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating when needed) the database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("sqlite backend ready", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (b *SQLite) EnsureNamespace(_ context.Context, namespace string) error {
	return checkKey(namespace)
}

func (b *SQLite) Names(ctx context.Context, namespace string) ([]string, error) {
	if err := checkKey(namespace); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM ledger_entries WHERE category = ? ORDER BY name`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (b *SQLite) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	if err := checkKey(namespace, name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT content FROM ledger_entries WHERE category = ? AND name = ?`, namespace, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

func (b *SQLite) Write(ctx context.Context, namespace, name string, data []byte) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (category, name, content, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (category, name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		namespace, name, data)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func (b *SQLite) Rename(ctx context.Context, namespace, oldName, newName string) error {
	if err := checkKey(namespace, oldName, newName); err != nil {
		return err
	}
	if oldName == newName {
		ok, err := b.Exists(ctx, namespace, oldName)
		if err == nil && !ok {
			err = ErrNotExist
		}
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM ledger_entries WHERE category = ? AND name = ?`, namespace, oldName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("lookup entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ledger_entries WHERE category = ? AND name = ?`, namespace, newName); err != nil {
		return fmt.Errorf("clear rename target: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE category = ? AND name = ?`,
		newName, namespace, oldName); err != nil {
		return fmt.Errorf("rename entry: %w", err)
	}
	return tx.Commit()
}

func (b *SQLite) Remove(ctx context.Context, namespace, name string) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE category = ? AND name = ?`, namespace, name)
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotExist
	}
	return nil
}

func (b *SQLite) Exists(ctx context.Context, namespace, name string) (bool, error) {
	if err := checkKey(namespace, name); err != nil {
		return false, err
	}
	var one int
	err := b.db.QueryRowContext(ctx,
		`SELECT 1 FROM ledger_entries WHERE category = ? AND name = ?`, namespace, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup entry: %w", err)
	}
	return true, nil
}

func (b *SQLite) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
