// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package postgres

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/sqlgen"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Routine describes a function or procedure as stored in pg_proc.
type Routine struct {
	Schema     string
	Name       string
	Procedure  bool
	Arguments  string // identity arguments, e.g. "a integer, b text"
	Definition string // CREATE OR REPLACE ... text from pg_get_functiondef
}

// Catalog reads object definitions from a PostgreSQL database.
type Catalog interface {
	Table(ctx context.Context, schema, name string) (*sqlgen.Table, error)
	ViewDefinition(ctx context.Context, schema, name string) (string, error)
	Routine(ctx context.Context, schema, name string) (*Routine, error)
	Close()
}

// poolCatalog queries pg_catalog over a connection pool and caches table
// descriptions for the life of the pool.
type poolCatalog struct {
	pool *pgxpool.Pool

	mu     sync.RWMutex
	tables map[string]*sqlgen.Table
}

func openPoolCatalog(ctx context.Context, dsn string) (Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "open postgres pool", err)
	}
	return &poolCatalog{pool: pool, tables: make(map[string]*sqlgen.Table)}, nil
}

const columnsQuery = `
	SELECT a.attname,
	       format_type(a.atttypid, a.atttypmod),
	       NOT a.attnotnull,
	       COALESCE(pg_get_expr(d.adbin, d.adrelid), '')
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
	WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
	ORDER BY a.attnum`

const primaryKeyQuery = `
	SELECT kc.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kc
	  ON tc.constraint_name = kc.constraint_name AND tc.table_schema = kc.table_schema
	WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
	ORDER BY kc.ordinal_position`

func (c *poolCatalog) Table(ctx context.Context, schema, name string) (*sqlgen.Table, error) {
	key := schema + "." + name
	c.mu.RLock()
	if t, ok := c.tables[key]; ok {
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "acquire connection", err)
	}
	defer conn.Release()

	t := &sqlgen.Table{Schema: schema, Name: name}

	rows, err := conn.Query(ctx, columnsQuery, schema, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load columns of "+key, err)
	}
	for rows.Next() {
		var col sqlgen.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default); err != nil {
			rows.Close()
			return nil, apperr.Wrap(apperr.CatalogFailed, "scan column of "+key, err)
		}
		t.Columns = append(t.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load columns of "+key, err)
	}
	if len(t.Columns) == 0 {
		return nil, apperr.New(apperr.ObjectNotFound, "relation "+key+" does not exist")
	}

	pk, err := conn.Query(ctx, primaryKeyQuery, schema, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load primary key of "+key, err)
	}
	t.PrimaryKey, err = pgx.CollectRows(pk, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load primary key of "+key, err)
	}

	c.mu.Lock()
	c.tables[key] = t
	c.mu.Unlock()
	return t, nil
}

func (c *poolCatalog) ViewDefinition(ctx context.Context, schema, name string) (string, error) {
	var def string
	err := c.pool.QueryRow(ctx,
		`SELECT definition FROM pg_views WHERE schemaname = $1 AND viewname = $2`,
		schema, name).Scan(&def)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.New(apperr.ObjectNotFound, "view "+schema+"."+name+" does not exist")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CatalogFailed, "load view "+schema+"."+name, err)
	}
	return strings.TrimSuffix(strings.TrimSpace(def), ";"), nil
}

func (c *poolCatalog) Routine(ctx context.Context, schema, name string) (*Routine, error) {
	r := &Routine{Schema: schema, Name: name}
	var kind string
	err := c.pool.QueryRow(ctx, `
		SELECT p.prokind::text,
		       pg_get_function_identity_arguments(p.oid),
		       pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1 AND p.proname = $2 AND p.prokind IN ('f', 'p')
		ORDER BY p.oid
		LIMIT 1`, schema, name).Scan(&kind, &r.Arguments, &r.Definition)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.ObjectNotFound, "routine "+schema+"."+name+" does not exist")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load routine "+schema+"."+name, err)
	}
	r.Procedure = kind == "p"
	r.Definition = strings.TrimSpace(r.Definition)
	return r, nil
}

func (c *poolCatalog) Close() {
	c.pool.Close()
}
