// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"sort"
	"strings"
)

// SQLiteResolver handles sqlite://path and file:path DSNs.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse extracts the database path and query parameters.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	lower := strings.ToLower(dsn)
	var rest string
	switch {
	case strings.HasPrefix(lower, "sqlite://"):
		rest = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "file:"):
		rest = dsn[len("file:"):]
	default:
		return nil, NewParseError("missing or invalid scheme", "use sqlite:///path/to/db.sqlite or file:path")
	}

	path, query, _ := strings.Cut(rest, "?")
	if strings.TrimSpace(path) == "" {
		return nil, NewParseError("missing database path", "use sqlite:///path/to/db.sqlite")
	}

	info := &DSNInfo{
		Type:   DBTypeSQLite,
		Path:   path,
		Params: make(map[string]string),
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, NewParseError("invalid query parameters", "use key=value pairs separated by &")
	}
	for k, v := range values {
		if len(v) > 0 {
			info.Params[k] = v[0]
		}
	}
	return info, nil
}

// Normalize renders info in the "file:" form accepted by the sqlite3 driver.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("nil DSN info", "")
	}
	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(info.Path)
	if len(info.Params) > 0 {
		keys := make([]string, 0, len(info.Params))
		for k := range info.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteString("?")
			} else {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k) + "=" + url.QueryEscape(info.Params[k]))
		}
	}
	return b.String(), nil
}

// Validate checks if the DSN is a usable SQLite DSN
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}
