// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/sqlgen"

	_ "github.com/mattn/go-sqlite3"
)

// catalog reads object definitions from sqlite_master and pragma_table_info.
type catalog struct {
	db *sql.DB
}

func openCatalog(ctx context.Context, dsn string) (*catalog, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "open sqlite database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.CatalogFailed, "open sqlite database", err)
	}
	return &catalog{db: db}, nil
}

func (c *catalog) table(ctx context.Context, schema, name string) (*sqlgen.Table, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		name, schema)
	if err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load columns of "+name, err)
	}
	defer rows.Close()

	t := &sqlgen.Table{Schema: schema, Name: name}
	keys := map[int]string{}
	for rows.Next() {
		var (
			col     sqlgen.Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, apperr.Wrap(apperr.CatalogFailed, "scan column of "+name, err)
		}
		col.Nullable = notNull == 0
		col.Default = dflt.String
		if pk > 0 {
			keys[pk] = col.Name
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CatalogFailed, "load columns of "+name, err)
	}
	if len(t.Columns) == 0 {
		return nil, apperr.New(apperr.ObjectNotFound, "table "+name+" does not exist")
	}

	order := make([]int, 0, len(keys))
	for i := range keys {
		order = append(order, i)
	}
	sort.Ints(order)
	for _, i := range order {
		t.PrimaryKey = append(t.PrimaryKey, keys[i])
	}
	return t, nil
}

// definition returns the stored CREATE statement of a table or view.
func (c *catalog) definition(ctx context.Context, schema, kind, name string) (string, error) {
	query := `SELECT sql FROM ` + dialect.QuoteIdent(schema) + `.sqlite_master WHERE type = ? AND name = ?`
	var def sql.NullString
	err := c.db.QueryRowContext(ctx, query, kind, name).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !def.Valid) {
		return "", apperr.New(apperr.ObjectNotFound, kind+" "+name+" does not exist")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.CatalogFailed, "load "+kind+" "+name, err)
	}
	return strings.TrimSuffix(strings.TrimSpace(def.String), ";"), nil
}

func (c *catalog) close() error {
	return c.db.Close()
}
