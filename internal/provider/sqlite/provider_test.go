// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/scripting"
)

type mapDSNs map[string]string

func (m mapDSNs) DSN(connectionURI string) (string, bool) {
	dsn, ok := m[connectionURI]
	return dsn, ok
}

type recordingSink struct {
	mu      sync.Mutex
	results []*scripting.CompleteResult
}

func (s *recordingSink) OnScriptingComplete(handle int, res *scripting.CompleteResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

// newTestDB creates a database file with a table and a view and returns its DSN.
func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, active INTEGER DEFAULT 1)`,
		`CREATE VIEW active_users AS SELECT id, email FROM users WHERE active = 1`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return dsn
}

func TestProvider_Script(t *testing.T) {
	dsn := newTestDB(t)
	sink := &recordingSink{}
	p := New(2, sink, mapDSNs{"local": dsn})
	defer p.Close()

	users := scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "users"}
	view := scripting.ObjectMetadata{MetadataType: scripting.View, Name: "active_users"}

	tests := []struct {
		name     string
		op       scripting.Operation
		metadata scripting.ObjectMetadata
		params   scripting.ParamDetails
		want     string
	}{
		{
			name:     "select with limit",
			op:       scripting.Select,
			metadata: users,
			params:   scripting.ParamDetails{SelectLimit: 5},
			want:     "SELECT \"id\",\n       \"email\",\n       \"active\"\nFROM \"users\"\nLIMIT 5;\n",
		},
		{
			name:     "create uses stored definition",
			op:       scripting.Create,
			metadata: users,
			want:     "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, active INTEGER DEFAULT 1);\n",
		},
		{
			name:     "insert",
			op:       scripting.Insert,
			metadata: users,
			want:     "INSERT INTO \"users\" (\"id\", \"email\", \"active\")\nVALUES (<id, INTEGER>, <email, TEXT>, <active, INTEGER>);\n",
		},
		{
			name:     "update",
			op:       scripting.Update,
			metadata: users,
			want:     "UPDATE \"users\"\nSET \"email\" = <email, TEXT>,\n    \"active\" = <active, INTEGER>\nWHERE \"id\" = <id, INTEGER>;\n",
		},
		{
			name:     "delete",
			op:       scripting.Delete,
			metadata: users,
			want:     "DELETE FROM \"users\"\nWHERE \"id\" = <id, INTEGER>;\n",
		},
		{
			name:     "select view",
			op:       scripting.Select,
			metadata: view,
			want:     "SELECT \"id\",\n       \"email\"\nFROM \"active_users\";\n",
		},
		{
			name:     "alter view",
			op:       scripting.Alter,
			metadata: view,
			want:     "DROP VIEW IF EXISTS \"active_users\";\nCREATE VIEW active_users AS SELECT id, email FROM users WHERE active = 1;\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.ScriptAsOperation(context.Background(), "local", tt.op, tt.metadata, tt.params)
			if err != nil {
				t.Fatalf("ScriptAsOperation() error = %v", err)
			}
			if res.Script != tt.want {
				t.Errorf("Script =\n%s\nwant\n%s", res.Script, tt.want)
			}
		})
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.results) != len(tests) {
		t.Errorf("sink received %d completions, want %d", len(sink.results), len(tests))
	}
}

func TestProvider_Errors(t *testing.T) {
	dsn := newTestDB(t)
	p := New(1, nil, mapDSNs{"local": dsn})
	defer p.Close()

	tests := []struct {
		name     string
		uri      string
		op       scripting.Operation
		metadata scripting.ObjectMetadata
		kind     apperr.Kind
	}{
		{
			name:     "unknown connection",
			uri:      "remote",
			op:       scripting.Select,
			metadata: scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "users"},
			kind:     apperr.InvalidConnection,
		},
		{
			name:     "missing table",
			uri:      "local",
			op:       scripting.Select,
			metadata: scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "orders"},
			kind:     apperr.ObjectNotFound,
		},
		{
			name:     "missing view definition",
			uri:      "local",
			op:       scripting.Create,
			metadata: scripting.ObjectMetadata{MetadataType: scripting.View, Name: "nope"},
			kind:     apperr.ObjectNotFound,
		},
		{
			name:     "unknown operation on table",
			uri:      "local",
			op:       scripting.Operation(42),
			metadata: scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "users"},
			kind:     apperr.UnsupportedOperation,
		},
		{
			name:     "unknown operation on view",
			uri:      "local",
			op:       scripting.Operation(42),
			metadata: scripting.ObjectMetadata{MetadataType: scripting.View, Name: "active_users"},
			kind:     apperr.UnsupportedOperation,
		},
		{
			name:     "alter table",
			uri:      "local",
			op:       scripting.Alter,
			metadata: scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "users"},
			kind:     apperr.UnsupportedOperation,
		},
		{
			name:     "functions",
			uri:      "local",
			op:       scripting.Create,
			metadata: scripting.ObjectMetadata{MetadataType: scripting.Function, Name: "f"},
			kind:     apperr.UnsupportedOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ScriptAsOperation(context.Background(), tt.uri, tt.op, tt.metadata, scripting.ParamDetails{})
			if !apperr.Is(err, tt.kind) {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestProvider_WritesFile(t *testing.T) {
	dsn := newTestDB(t)
	p := New(1, nil, mapDSNs{"local": dsn})
	defer p.Close()

	out := filepath.Join(t.TempDir(), "users.sql")
	res, err := p.ScriptAsOperation(context.Background(), "local", scripting.Delete,
		scripting.ObjectMetadata{MetadataType: scripting.Table, Name: "users"},
		scripting.ParamDetails{FilePath: out})
	if err != nil {
		t.Fatalf("ScriptAsOperation() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read script file: %v", err)
	}
	if string(data) != res.Script {
		t.Errorf("file = %q, want %q", data, res.Script)
	}
}

func TestPing(t *testing.T) {
	if err := Ping(context.Background(), newTestDB(t)); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
