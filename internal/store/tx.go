package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// IsForeignKeyError reports whether err is a foreign-key violation on
// either supported dialect.
func IsForeignKeyError(err error) bool {
	return sqlgraph.IsForeignKeyConstraintError(err)
}

// IsUniqueError reports whether err is a unique-constraint violation.
func IsUniqueError(err error) bool {
	return sqlgraph.IsUniqueConstraintError(err)
}

// Tx is one database transaction. Every repository operation takes a *Tx so
// that a request reads and writes a single consistent view.
type Tx struct {
	tx      *sql.Tx
	dialect string
}

func (t *Tx) sb() *entsql.DialectBuilder {
	return entsql.Dialect(t.dialect)
}

func (t *Tx) postgres() bool {
	return t.dialect == dialect.Postgres
}

func (t *Tx) query(ctx context.Context, q entsql.Querier) (*sql.Rows, error) {
	query, args := q.Query()
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) queryRow(ctx context.Context, q entsql.Querier) *sql.Row {
	query, args := q.Query()
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) exec(ctx context.Context, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return t.tx.ExecContext(ctx, query, args...)
}

// insertID runs an insert and returns the generated id. PostgreSQL reports
// it through RETURNING; SQLite through LastInsertId.
func (t *Tx) insertID(ctx context.Context, ib *entsql.InsertBuilder) (int64, error) {
	var id int64
	if t.postgres() {
		if err := t.queryRow(ctx, ib.Returning("id")).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := t.exec(ctx, ib)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// rowsAffected runs a statement and returns how many rows it touched.
func (t *Tx) rowsAffected(ctx context.Context, q entsql.Querier) (int64, error) {
	res, err := t.exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanInt64s(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func encodeConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode validator config: %w", err)
	}
	return string(b), nil
}

func decodeConfig(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode validator config: %w", err)
	}
	return cfg, nil
}
