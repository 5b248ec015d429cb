// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package connection

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk layout accepted by LoadProfiles:
//
//	connections:
//	  - name: analytics
//	    dsn: postgres://report:secret@db:5432/analytics
//	  - name: legacy
//	    dsn: tcp://legacy-host:1433
//	    provider: mssql
type profileFile struct {
	Connections []Profile `yaml:"connections"`
}

// LoadProfiles reads connection profiles from a YAML file and validates each one.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(f.Connections))
	for i, p := range f.Connections {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: connections[%d]: %w", path, i, err)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate connection name %q", path, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return f.Connections, nil
}
