package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
)

// Postgres keeps every namespace in one table reached through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string // sanitized identifier
	logger *slog.Logger
}

// OpenPostgres creates a pgx pool from cfg and makes sure the table exists.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "cfdi-ledger"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		logger.Error("database ping failed", "error", err)
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "ledger_entries"
	}
	b := &Postgres{pool: pool, table: pgx.Identifier{table}.Sanitize(), logger: logger}
	if err := b.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")
	return b, nil
}

func (b *Postgres) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		category   TEXT NOT NULL,
		name       TEXT NOT NULL,
		content    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (category, name)
	);`, b.table)
	if _, err := b.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating %s table: %w", b.table, err)
	}
	return nil
}

func (b *Postgres) EnsureNamespace(_ context.Context, namespace string) error {
	return checkKey(namespace)
}

func (b *Postgres) Names(ctx context.Context, namespace string) ([]string, error) {
	if err := checkKey(namespace); err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, fmt.Sprintf(`SELECT name FROM %s WHERE category = $1 ORDER BY name`, b.table), namespace)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return names, nil
}

func (b *Postgres) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	if err := checkKey(namespace, name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT content FROM %s WHERE category = $1 AND name = $2`, b.table), namespace, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

func (b *Postgres) Write(ctx context.Context, namespace, name string, data []byte) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (category, name, content, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (category, name) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`, b.table),
		namespace, name, data)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func (b *Postgres) Rename(ctx context.Context, namespace, oldName, newName string) error {
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
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT 1 FROM %s WHERE category = $1 AND name = $2 FOR UPDATE`, b.table), namespace, oldName).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotExist
		}
		if err != nil {
			return fmt.Errorf("lookup entry: %w", err)
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE category = $1 AND name = $2`, b.table), namespace, newName); err != nil {
			return fmt.Errorf("clear rename target: %w", err)
		}
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET name = $1, updated_at = now() WHERE category = $2 AND name = $3`, b.table),
			newName, namespace, oldName); err != nil {
			return fmt.Errorf("rename entry: %w", err)
		}
		return nil
	})
}

func (b *Postgres) Remove(ctx context.Context, namespace, name string) error {
	if err := checkKey(namespace, name); err != nil {
		return err
	}
	tag, err := b.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE category = $1 AND name = $2`, b.table), namespace, name)
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotExist
	}
	return nil
}

func (b *Postgres) Exists(ctx context.Context, namespace, name string) (bool, error) {
	if err := checkKey(namespace, name); err != nil {
		return false, err
	}
	var exists bool
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE category = $1 AND name = $2)`, b.table), namespace, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup entry: %w", err)
	}
	return exists, nil
}

// Close closes the pool gracefully
func (b *Postgres) Close() error {
	b.logger.Info("closing database connections")
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
