// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlite scripts SQLite tables and views. SQLite has no stored routines,
// so function and procedure requests fail with an unsupported-operation error.
package sqlite

import (
	"context"
	"sync"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/provider"
	"dbscript/cli/internal/scripting"
	"dbscript/cli/internal/sqlgen"
)

// ProviderID is the id SQLite connections resolve to.
const ProviderID = "sqlite"

const defaultSchema = "main"

var dialect = sqlgen.Standard{OmitSchema: defaultSchema}

// Provider implements scripting.Provider for SQLite database files.
type Provider struct {
	handle int
	sink   scripting.CompletionSink
	dsns   provider.DSNSource

	mu       sync.Mutex
	catalogs map[string]*catalog
}

// New creates a Provider reporting completions to sink under handle.
func New(handle int, sink scripting.CompletionSink, dsns provider.DSNSource) *Provider {
	return &Provider{
		handle:   handle,
		sink:     sink,
		dsns:     dsns,
		catalogs: make(map[string]*catalog),
	}
}

// ScriptAsOperation generates the script for op on metadata.
func (p *Provider) ScriptAsOperation(ctx context.Context, connectionURI string, op scripting.Operation, metadata scripting.ObjectMetadata, params scripting.ParamDetails) (*scripting.Result, error) {
	return provider.Run(ctx, p.handle, p.sink, params, func(ctx context.Context) (string, error) {
		cat, err := p.catalog(ctx, connectionURI)
		if err != nil {
			return "", err
		}
		return script(ctx, cat, op, metadata, params)
	})
}

func (p *Provider) catalog(ctx context.Context, connectionURI string) (*catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cat, ok := p.catalogs[connectionURI]; ok {
		return cat, nil
	}
	dsn, ok := p.dsns.DSN(connectionURI)
	if !ok {
		return nil, apperr.New(apperr.InvalidConnection, "unknown connection "+connectionURI)
	}
	cat, err := openCatalog(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p.catalogs[connectionURI] = cat
	return cat, nil
}

// Close closes every database opened by the provider.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uri, cat := range p.catalogs {
		cat.close()
		delete(p.catalogs, uri)
	}
}

func script(ctx context.Context, cat *catalog, op scripting.Operation, metadata scripting.ObjectMetadata, params scripting.ParamDetails) (string, error) {
	schema := metadata.Schema
	if schema == "" {
		schema = defaultSchema
	}

	switch metadata.MetadataType {
	case scripting.Table:
		switch op {
		case scripting.Create:
			def, err := cat.definition(ctx, schema, "table", metadata.Name)
			if err != nil {
				return "", err
			}
			return def + ";\n", nil
		case scripting.Select, scripting.Insert, scripting.Update, scripting.Delete:
		default:
			return "", unsupported(op, metadata)
		}
		t, err := cat.table(ctx, schema, metadata.Name)
		if err != nil {
			return "", err
		}
		switch op {
		case scripting.Select:
			return sqlgen.Select(dialect, *t, params.SelectLimit), nil
		case scripting.Insert:
			return sqlgen.Insert(dialect, *t), nil
		case scripting.Update:
			return sqlgen.Update(dialect, *t), nil
		case scripting.Delete:
			return sqlgen.Delete(dialect, *t), nil
		}
		return "", unsupported(op, metadata)

	case scripting.View:
		switch op {
		case scripting.Select:
			t, err := cat.table(ctx, schema, metadata.Name)
			if err != nil {
				return "", err
			}
			return sqlgen.Select(dialect, *t, params.SelectLimit), nil
		case scripting.Create, scripting.Alter:
			def, err := cat.definition(ctx, schema, "view", metadata.Name)
			if err != nil {
				return "", err
			}
			if op == scripting.Alter {
				return "DROP VIEW IF EXISTS " + dialect.QualifiedName(schema, metadata.Name) + ";\n" + def + ";\n", nil
			}
			return def + ";\n", nil
		}
	}
	return "", unsupported(op, metadata)
}

func unsupported(op scripting.Operation, metadata scripting.ObjectMetadata) error {
	return apperr.New(apperr.UnsupportedOperation,
		"sqlite cannot script "+op.String()+" for "+metadata.MetadataType.String()+" "+metadata.QualifiedName())
}

// Ping opens dsn and reads the schema table.
func Ping(ctx context.Context, dsn string) error {
	cat, err := openCatalog(ctx, dsn)
	if err != nil {
		return apperr.Wrap(apperr.InvalidConnection, "open sqlite database", err)
	}
	defer cat.close()
	var n int
	if err := cat.db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		return apperr.Wrap(apperr.InvalidConnection, "read sqlite schema", err)
	}
	return nil
}
