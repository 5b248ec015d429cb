// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dsn detects, validates and normalizes database connection strings and
// maps them to the id of the scripting provider responsible for them.
package dsn

import "fmt"

// DBType names the database engine a DSN points at.
type DBType string

const (
	DBTypePostgreSQL DBType = "postgresql"
	DBTypeSQLite     DBType = "sqlite"
	DBTypeMySQL      DBType = "mysql"
	DBTypeOracle     DBType = "oracle"
	DBTypeUnknown    DBType = "unknown"
)

// DSNInfo holds the parts of a parsed DSN. Server engines fill the network
// fields; SQLite sets only Path and Params.
type DSNInfo struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Path     string
	Params   map[string]string
}

// Resolver parses, validates and normalizes DSNs for one engine.
type Resolver interface {
	Parse(dsn string) (*DSNInfo, error)
	Normalize(info *DSNInfo) (string, error)
	Validate(dsn string) error
}

// ParseError reports a malformed DSN. The DSN itself is left out so
// credentials never reach logs.
type ParseError struct {
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

func NewParseError(reason, hint string) *ParseError {
	return &ParseError{Reason: reason, Hint: hint}
}
