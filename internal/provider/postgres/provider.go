// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package postgres scripts PostgreSQL tables, views, functions and procedures
// from the live catalog.
package postgres

import (
	"context"
	"strings"
	"sync"
	"time"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/provider"
	"dbscript/cli/internal/scripting"
	"dbscript/cli/internal/sqlgen"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderID is the id PostgreSQL connections resolve to.
const ProviderID = "postgresql"

const defaultSchema = "public"

var dialect = sqlgen.Standard{}

// Opener opens a catalog for a DSN.
type Opener func(ctx context.Context, dsn string) (Catalog, error)

// Option configures a Provider.
type Option func(*Provider)

// WithOpener replaces the pgxpool-backed catalog.
func WithOpener(open Opener) Option {
	return func(p *Provider) { p.open = open }
}

// Provider implements scripting.Provider for PostgreSQL. Catalogs are opened
// lazily per connection and reused until Close.
type Provider struct {
	handle int
	sink   scripting.CompletionSink
	dsns   provider.DSNSource
	open   Opener

	mu       sync.Mutex
	catalogs map[string]Catalog
}

// New creates a Provider reporting completions to sink under handle.
func New(handle int, sink scripting.CompletionSink, dsns provider.DSNSource, opts ...Option) *Provider {
	p := &Provider{
		handle:   handle,
		sink:     sink,
		dsns:     dsns,
		open:     openPoolCatalog,
		catalogs: make(map[string]Catalog),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ScriptAsOperation generates the script for op on metadata. The call blocks until
// the script is ready or ctx ends; the completion is also reported to the sink.
func (p *Provider) ScriptAsOperation(ctx context.Context, connectionURI string, op scripting.Operation, metadata scripting.ObjectMetadata, params scripting.ParamDetails) (*scripting.Result, error) {
	return provider.Run(ctx, p.handle, p.sink, params, func(ctx context.Context) (string, error) {
		cat, err := p.catalog(ctx, connectionURI)
		if err != nil {
			return "", err
		}
		return Script(ctx, cat, op, metadata, params)
	})
}

func (p *Provider) catalog(ctx context.Context, connectionURI string) (Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cat, ok := p.catalogs[connectionURI]; ok {
		return cat, nil
	}
	dsn, ok := p.dsns.DSN(connectionURI)
	if !ok {
		return nil, apperr.New(apperr.InvalidConnection, "unknown connection "+connectionURI)
	}
	cat, err := p.open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	p.catalogs[connectionURI] = cat
	return cat, nil
}

// Close releases every catalog opened by the provider.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for uri, cat := range p.catalogs {
		cat.Close()
		delete(p.catalogs, uri)
	}
}

// Script renders the script for op on metadata using cat.
func Script(ctx context.Context, cat Catalog, op scripting.Operation, metadata scripting.ObjectMetadata, params scripting.ParamDetails) (string, error) {
	schema := metadata.Schema
	if schema == "" {
		schema = defaultSchema
	}

	switch metadata.MetadataType {
	case scripting.Table:
		switch op {
		case scripting.Select, scripting.Create, scripting.Insert, scripting.Update, scripting.Delete, scripting.Alter:
		default:
			return "", unsupported(op, metadata)
		}
		t, err := cat.Table(ctx, schema, metadata.Name)
		if err != nil {
			return "", err
		}
		return scriptTable(op, *t, params.SelectLimit)

	case scripting.View:
		switch op {
		case scripting.Select:
			t, err := cat.Table(ctx, schema, metadata.Name)
			if err != nil {
				return "", err
			}
			return sqlgen.Select(dialect, *t, params.SelectLimit), nil
		case scripting.Create, scripting.Alter:
			def, err := cat.ViewDefinition(ctx, schema, metadata.Name)
			if err != nil {
				return "", err
			}
			verb := "CREATE VIEW "
			if op == scripting.Alter {
				verb = "CREATE OR REPLACE VIEW "
			}
			return verb + dialect.QualifiedName(schema, metadata.Name) + " AS\n" + def + ";\n", nil
		}
		return "", unsupported(op, metadata)

	case scripting.Function, scripting.StoredProcedure:
		switch op {
		case scripting.Create, scripting.Alter, scripting.Execute:
		default:
			return "", unsupported(op, metadata)
		}
		r, err := cat.Routine(ctx, schema, metadata.Name)
		if err != nil {
			return "", err
		}
		return scriptRoutine(op, r), nil
	}
	return "", unsupported(op, metadata)
}

func scriptTable(op scripting.Operation, t sqlgen.Table, limit int) (string, error) {
	switch op {
	case scripting.Select:
		return sqlgen.Select(dialect, t, limit), nil
	case scripting.Create:
		return sqlgen.CreateTable(dialect, t), nil
	case scripting.Insert:
		return sqlgen.Insert(dialect, t), nil
	case scripting.Update:
		return sqlgen.Update(dialect, t), nil
	case scripting.Delete:
		return sqlgen.Delete(dialect, t), nil
	case scripting.Alter:
		return sqlgen.AlterTable(dialect, t), nil
	}
	return "", unsupported(op, scripting.ObjectMetadata{MetadataType: scripting.Table, Schema: t.Schema, Name: t.Name})
}

func scriptRoutine(op scripting.Operation, r *Routine) string {
	if op == scripting.Execute {
		call := dialect.QualifiedName(r.Schema, r.Name) + "(" + argumentPlaceholders(r.Arguments) + ")"
		if r.Procedure {
			return "CALL " + call + ";\n"
		}
		return "SELECT * FROM " + call + ";\n"
	}
	def := r.Definition
	if op == scripting.Create {
		def = strings.Replace(def, "CREATE OR REPLACE ", "CREATE ", 1)
	}
	return strings.TrimSuffix(def, ";") + ";\n"
}

// argumentPlaceholders turns "a integer, b text" into "<a, integer>, <b, text>".
func argumentPlaceholders(args string) string {
	if strings.TrimSpace(args) == "" {
		return ""
	}
	parts := strings.Split(args, ", ")
	out := make([]string, 0, len(parts))
	for _, arg := range parts {
		name, typ, ok := strings.Cut(strings.TrimSpace(arg), " ")
		if !ok {
			out = append(out, "<"+name+">")
			continue
		}
		out = append(out, "<"+name+", "+typ+">")
	}
	return strings.Join(out, ", ")
}

func unsupported(op scripting.Operation, metadata scripting.ObjectMetadata) error {
	return apperr.New(apperr.UnsupportedOperation,
		"cannot script "+op.String()+" for "+metadata.MetadataType.String()+" "+metadata.QualifiedName())
}

// Ping opens a short-lived pool for dsn and checks that the server answers.
func Ping(ctx context.Context, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return apperr.Wrap(apperr.InvalidConnection, "open postgres pool", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return apperr.Wrap(apperr.InvalidConnection, "ping postgres", err)
	}
	return nil
}
