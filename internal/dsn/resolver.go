// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"strings"
)

const supportedSchemes = "use postgres://, postgresql://, sqlite:// or file:"

// DetectDBType detects the database type from a DSN string
func DetectDBType(dsn string) DBType {
	lower := strings.ToLower(strings.TrimSpace(dsn))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DBTypePostgreSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		return DBTypeSQLite
	case strings.HasPrefix(lower, "mysql://"):
		return DBTypeMySQL
	case strings.HasPrefix(lower, "oracle://"):
		return DBTypeOracle
	}
	return DBTypeUnknown
}

// ProviderID returns the id of the scripting provider that handles dsn,
// or "" when no built-in provider supports its database type.
func ProviderID(dsn string) string {
	switch t := DetectDBType(dsn); t {
	case DBTypePostgreSQL, DBTypeSQLite:
		return string(t)
	}
	return ""
}

// resolverFor picks the resolver for dsn's database type.
func resolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError("empty DSN", "provide a valid database connection string")
	}

	switch DetectDBType(dsn) {
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), nil
	case DBTypeSQLite:
		return NewSQLiteResolver(), nil
	case DBTypeMySQL:
		return nil, NewParseError("MySQL scripting is not supported", "register a remote provider for mysql")
	case DBTypeOracle:
		return nil, NewParseError("Oracle scripting is not supported", "register a remote provider for oracle")
	}
	return nil, NewParseError("unknown database type", supportedSchemes)
}

// Parse parses a DSN string and returns the normalized connection string.
// This is the main entry point for DSN parsing.
func Parse(dsn string) (string, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return "", err
	}

	info, err := resolver.Parse(dsn)
	if err != nil {
		return "", err
	}
	return resolver.Normalize(info)
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return err
	}
	return resolver.Validate(dsn)
}

// ParseInfo parses a DSN string and returns detailed DSN info
func ParseInfo(dsn string) (*DSNInfo, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return nil, err
	}
	return resolver.Parse(dsn)
}
