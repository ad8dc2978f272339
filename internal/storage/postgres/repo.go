// Package postgres implements the storage sink using pgx v5. Each run
// replaces the destination table's contents with a COPY of the final well
// table inside one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wellnorm/internal/storage"
	"wellnorm/internal/table"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
		return NewRepository(ctx, cfg)
	})
}

// Repository is a Postgres-backed implementation of storage.Sink.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository constructs a Repository backed by a pgx connection pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() { r.pool.Close() }

// Store replaces the destination table's contents with t. The truncate and
// COPY run in one transaction so readers never observe a half-loaded table.
func (r *Repository) Store(ctx context.Context, t *table.Table) (int64, error) {
	if r.cfg.AutoCreateTable {
		if err := r.ensureTable(ctx, t); err != nil {
			return 0, err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "TRUNCATE "+pgFQN(r.cfg.Table)); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", r.cfg.Table, err)
	}

	cols := t.Columns()
	rows := make([][]any, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		for j, v := range row {
			if table.IsNull(v) {
				row[j] = nil
			}
		}
		rows = append(rows, row)
	}

	n, err := tx.CopyFrom(ctx, splitFQN(r.cfg.Table), cols, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into %s: %s (%s)", r.cfg.Table, pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy into %s: %w", r.cfg.Table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// ensureTable creates the destination table from t's columns when it does not
// exist yet.
func (r *Repository) ensureTable(ctx context.Context, t *table.Table) error {
	sql, err := BuildCreateTableSQL(r.cfg.Table, t)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create %s: %w", r.cfg.Table, err)
	}
	return nil
}

// BuildCreateTableSQL builds a deterministic CREATE TABLE IF NOT EXISTS
// statement for t. Column SQL types follow the first non-null cell per
// column; all-null columns become text. Every column is nullable, since the
// table stores an as-published snapshot with gaps.
func BuildCreateTableSQL(fqn string, t *table.Table) (string, error) {
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", fmt.Errorf("postgres: table name must not be empty")
	}
	if t.NumCols() == 0 {
		return "", fmt.Errorf("postgres: at least one column is required")
	}

	cols := make([]string, 0, t.NumCols())
	for _, c := range t.Columns() {
		cols = append(cols, pgIdent(c)+" "+sqlType(t, c))
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		pgFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

func sqlType(t *table.Table, col string) string {
	for i := 0; i < t.NumRows(); i++ {
		v, _ := t.Value(i, col)
		if table.IsNull(v) {
			continue
		}
		switch v.(type) {
		case float64:
			return "double precision"
		case bool:
			return "boolean"
		case time.Time:
			return "timestamptz"
		default:
			return "text"
		}
	}
	return "text"
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.wells_ab" to
// "public"."wells_ab". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
