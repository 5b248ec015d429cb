// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scripting

import (
	"context"
	"fmt"
	"strings"
)

// Operation tags the category of script being generated.
// The service never interprets it; providers do.
type Operation int

const (
	Select Operation = iota
	Create
	Insert
	Update
	Delete
	Execute
	Alter
)

var operationNames = [...]string{"select", "create", "insert", "update", "delete", "execute", "alter"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation maps a case-insensitive operation name to its Operation.
func ParseOperation(s string) (Operation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range operationNames {
		if n == name {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scripting operation %q (want one of %s)", s, strings.Join(operationNames[:], ", "))
}

// MetadataType is the kind of database object being scripted.
type MetadataType int

const (
	Table MetadataType = iota
	View
	StoredProcedure
	Function
)

var metadataTypeNames = [...]string{"table", "view", "procedure", "function"}

func (m MetadataType) String() string {
	if m < 0 || int(m) >= len(metadataTypeNames) {
		return fmt.Sprintf("metadata(%d)", int(m))
	}
	return metadataTypeNames[m]
}

// ParseMetadataType maps a case-insensitive object kind to its MetadataType.
func ParseMetadataType(s string) (MetadataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "storedprocedure" || name == "proc" {
		name = "procedure"
	}
	for i, n := range metadataTypeNames {
		if n == name {
			return MetadataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q (want one of %s)", s, strings.Join(metadataTypeNames[:], ", "))
}

// ObjectMetadata describes the database object a script is generated for.
type ObjectMetadata struct {
	MetadataType     MetadataType
	MetadataTypeName string
	URN              string
	Name             string
	Schema           string
}

// QualifiedName returns "schema.name", or just the name when no schema is set.
func (m ObjectMetadata) QualifiedName() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// ParamDetails carries provider-specific scripting parameters.
type ParamDetails struct {
	// FilePath, when set, asks the provider to also write the script to this file.
	FilePath                    string
	ScriptCompatibilityOption   string
	TargetDatabaseEngineEdition string
	TargetDatabaseEngineType    string
	// SelectLimit bounds generated SELECT scripts; zero means the provider default.
	SelectLimit int
}

// Result is what a provider returns for a scripting request.
type Result struct {
	OperationID string
	Script      string
}

// CompleteResult is the completion notification for an asynchronous scripting operation.
type CompleteResult struct {
	OperationID  string
	HasError     bool
	ErrorMessage string
	ErrorDetails string
	Canceled     bool
	Success      bool
}

// Provider is a pluggable backend able to generate scripts for a connection type.
type Provider interface {
	ScriptAsOperation(ctx context.Context, connectionURI string, op Operation, metadata ObjectMetadata, params ParamDetails) (*Result, error)
}

// ConnectionResolver maps a connection URI to the id of the provider that owns it.
// An empty id means the connection is unknown.
type ConnectionResolver interface {
	ProviderID(connectionURI string) string
}

// CompletionSink receives completion notifications from providers.
// The handle identifies the reporting provider.
type CompletionSink interface {
	OnScriptingComplete(handle int, res *CompleteResult)
}
