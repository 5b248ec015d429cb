// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlgen renders CREATE/SELECT/INSERT/UPDATE/DELETE/ALTER script text for
// a table description. Providers load the description from their catalog and pick
// a Dialect; the text layout is shared.
//
// Insert and Update scripts are templates: values are written as
// <column, type> placeholders for the user to fill in.
package sqlgen

import (
	"fmt"
	"strings"
)

// Dialect controls identifier quoting and row limiting.
type Dialect interface {
	QuoteIdent(name string) string
	QualifiedName(schema, name string) string
	LimitClause(n int) string
}

// Standard is a double-quoting dialect with LIMIT n row limiting, valid for
// PostgreSQL and SQLite. Objects in OmitSchema are written unqualified.
type Standard struct {
	OmitSchema string
}

func (s Standard) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s Standard) QualifiedName(schema, name string) string {
	if schema == "" || schema == s.OmitSchema {
		return s.QuoteIdent(name)
	}
	return s.QuoteIdent(schema) + "." + s.QuoteIdent(name)
}

func (s Standard) LimitClause(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

// Column describes one table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

// Table describes a table as loaded from a catalog.
type Table struct {
	Schema     string
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Column returns the column named name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t Table) isKey(name string) bool {
	for _, k := range t.PrimaryKey {
		if k == name {
			return true
		}
	}
	return false
}

func placeholder(c Column) string {
	if c.Type == "" {
		return "<" + c.Name + ">"
	}
	return "<" + c.Name + ", " + c.Type + ">"
}

// Select renders a SELECT of every column. limit <= 0 omits the row limit.
func Select(d Dialect, t Table, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(t.Columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(",\n       ")
		}
		b.WriteString(d.QuoteIdent(c.Name))
	}
	b.WriteString("\nFROM ")
	b.WriteString(d.QualifiedName(t.Schema, t.Name))
	if limit > 0 {
		b.WriteString("\n")
		b.WriteString(d.LimitClause(limit))
	}
	b.WriteString(";\n")
	return b.String()
}

// CreateTable renders a CREATE TABLE statement with column defaults and the primary key.
func CreateTable(d Dialect, t Table) string {
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		line := "    " + d.QuoteIdent(c.Name)
		if c.Type != "" {
			line += " " + c.Type
		}
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.Default != "" {
			line += " DEFAULT " + c.Default
		}
		lines = append(lines, line)
	}
	if len(t.PrimaryKey) > 0 {
		lines = append(lines, "    PRIMARY KEY ("+quoteList(d, t.PrimaryKey)+")")
	}
	return "CREATE TABLE " + d.QualifiedName(t.Schema, t.Name) + " (\n" + strings.Join(lines, ",\n") + "\n);\n"
}

// Insert renders an INSERT template covering every column.
func Insert(d Dialect, t Table) string {
	target := d.QualifiedName(t.Schema, t.Name)
	if len(t.Columns) == 0 {
		return "INSERT INTO " + target + " DEFAULT VALUES;\n"
	}
	names := make([]string, len(t.Columns))
	values := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
		values[i] = placeholder(c)
	}
	return "INSERT INTO " + target + " (" + quoteList(d, names) + ")\nVALUES (" + strings.Join(values, ", ") + ");\n"
}

// Update renders an UPDATE template. Key columns are matched in WHERE rather than set,
// unless the table has nothing but key columns.
func Update(d Dialect, t Table) string {
	var set []string
	for _, c := range t.Columns {
		if t.isKey(c.Name) {
			continue
		}
		set = append(set, d.QuoteIdent(c.Name)+" = "+placeholder(c))
	}
	if len(set) == 0 {
		for _, c := range t.Columns {
			set = append(set, d.QuoteIdent(c.Name)+" = "+placeholder(c))
		}
	}
	return "UPDATE " + d.QualifiedName(t.Schema, t.Name) +
		"\nSET " + strings.Join(set, ",\n    ") +
		"\n" + where(d, t) + ";\n"
}

// Delete renders a DELETE template.
func Delete(d Dialect, t Table) string {
	return "DELETE FROM " + d.QualifiedName(t.Schema, t.Name) + "\n" + where(d, t) + ";\n"
}

// AlterTable renders an ALTER TABLE template restating every column type.
func AlterTable(d Dialect, t Table) string {
	clauses := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		clauses = append(clauses, "    ALTER COLUMN "+d.QuoteIdent(c.Name)+" TYPE "+c.Type)
	}
	return "ALTER TABLE " + d.QualifiedName(t.Schema, t.Name) + "\n" + strings.Join(clauses, ",\n") + ";\n"
}

func where(d Dialect, t Table) string {
	if len(t.PrimaryKey) == 0 {
		return "WHERE <search condition>"
	}
	conds := make([]string, 0, len(t.PrimaryKey))
	for _, k := range t.PrimaryKey {
		c, ok := t.Column(k)
		if !ok {
			c = Column{Name: k}
		}
		conds = append(conds, d.QuoteIdent(k)+" = "+placeholder(c))
	}
	return "WHERE " + strings.Join(conds, "\n  AND ")
}

func quoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
