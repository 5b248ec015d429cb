// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scripting

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	apperr "dbscript/cli/internal/errors"

	"github.com/pterm/pterm"
)

// mapResolver resolves provider ids from a fixed map.
type mapResolver map[string]string

func (m mapResolver) ProviderID(connectionURI string) string { return m[connectionURI] }

type scriptCall struct {
	connectionURI string
	op            Operation
	metadata      ObjectMetadata
	params        ParamDetails
}

// recordingProvider records every call and returns a canned result.
type recordingProvider struct {
	mu     sync.Mutex
	calls  []scriptCall
	result *Result
	err    error
}

func (p *recordingProvider) ScriptAsOperation(ctx context.Context, connectionURI string, op Operation, metadata ObjectMetadata, params ParamDetails) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, scriptCall{connectionURI, op, metadata, params})
	return p.result, p.err
}

func newTestService(resolver ConnectionResolver) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := pterm.DefaultLogger.WithWriter(&buf).WithFormatter(pterm.LogFormatterJSON)
	return NewService(resolver, logger), &buf
}

func TestService_ScriptDelegatesToResolvedProvider(t *testing.T) {
	svc, _ := newTestService(mapResolver{"conn-1": "P1"})
	provider := &recordingProvider{result: &Result{OperationID: "op-1", Script: "SELECT 1;"}}
	svc.RegisterProvider("P1", provider)

	metadata := ObjectMetadata{MetadataType: Table, Name: "users", Schema: "public"}
	params := ParamDetails{FilePath: "/tmp/users.sql", SelectLimit: 10}

	res, err := svc.Script(context.Background(), "conn-1", metadata, Create, params)
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if res != provider.result {
		t.Errorf("Script() result = %+v, want provider result %+v", res, provider.result)
	}

	want := []scriptCall{{connectionURI: "conn-1", op: Create, metadata: metadata, params: params}}
	if !reflect.DeepEqual(provider.calls, want) {
		t.Errorf("provider calls = %+v, want %+v", provider.calls, want)
	}
}

func TestService_ScriptWithoutProvider(t *testing.T) {
	provider := &recordingProvider{result: &Result{OperationID: "op-1"}}

	tests := []struct {
		name     string
		resolver mapResolver
	}{
		{
			name:     "resolver returns no provider id",
			resolver: mapResolver{},
		},
		{
			name:     "no provider registered under resolved id",
			resolver: mapResolver{"conn-1": "P2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(tt.resolver)
			svc.RegisterProvider("P1", provider)

			res, err := svc.Script(context.Background(), "conn-1", ObjectMetadata{Name: "t"}, Select, ParamDetails{})
			if err != nil {
				t.Errorf("Script() error = %v, want nil", err)
			}
			if res != nil {
				t.Errorf("Script() result = %+v, want nil", res)
			}
		})
	}

	if len(provider.calls) != 0 {
		t.Errorf("provider was called %d times, want 0", len(provider.calls))
	}
}

func TestService_RegisterProviderLastWriteWins(t *testing.T) {
	svc, _ := newTestService(mapResolver{"conn-1": "P1"})
	first := &recordingProvider{result: &Result{OperationID: "first"}}
	second := &recordingProvider{result: &Result{OperationID: "second"}}

	svc.RegisterProvider("P1", first)
	svc.RegisterProvider("P1", second)

	res, err := svc.Script(context.Background(), "conn-1", ObjectMetadata{Name: "t"}, Select, ParamDetails{})
	if err != nil {
		t.Fatalf("Script() error = %v", err)
	}
	if res == nil || res.OperationID != "second" {
		t.Errorf("Script() result = %+v, want the second provider's result", res)
	}
	if len(first.calls) != 0 {
		t.Errorf("first provider was called %d times, want 0", len(first.calls))
	}
	if len(second.calls) != 1 {
		t.Errorf("second provider was called %d times, want 1", len(second.calls))
	}
}

func TestService_ScriptPropagatesProviderError(t *testing.T) {
	svc, _ := newTestService(mapResolver{"conn-1": "P1"})
	providerErr := errors.New("catalog unavailable")
	provider := &recordingProvider{result: &Result{OperationID: "op-7"}, err: providerErr}
	svc.RegisterProvider("P1", provider)

	res, err := svc.Script(context.Background(), "conn-1", ObjectMetadata{Name: "t"}, Select, ParamDetails{})
	if err != providerErr {
		t.Errorf("Script() error = %v, want the provider error unchanged", err)
	}
	if res == nil || res.OperationID != "op-7" {
		t.Errorf("Script() result = %+v, want provider result", res)
	}
}

func TestService_ScriptNilProvider(t *testing.T) {
	svc, _ := newTestService(mapResolver{"conn-1": "P1"})
	svc.RegisterProvider("P1", nil)

	if !svc.HasProvider("P1") {
		t.Fatal("HasProvider() = false after registering nil provider")
	}
	res, err := svc.Script(context.Background(), "conn-1", ObjectMetadata{Name: "t"}, Select, ParamDetails{})
	if res != nil {
		t.Errorf("Script() result = %+v, want nil", res)
	}
	if !apperr.Is(err, apperr.ProviderUnavailable) {
		t.Errorf("Script() error = %v, want ProviderUnavailable", err)
	}
}

func TestService_OnScriptingCompleteRecordsFailures(t *testing.T) {
	svc, logs := newTestService(mapResolver{})

	failure := &CompleteResult{HasError: true, ErrorMessage: "boom", OperationID: "op-42"}
	svc.OnScriptingComplete(1, failure)

	got, ok := svc.OperationFailedResult("op-42")
	if !ok || got != failure {
		t.Errorf("OperationFailedResult(op-42) = %+v, %v; want the reported record", got, ok)
	}
	if got, ok := svc.OperationFailedResult("op-99"); ok || got != nil {
		t.Errorf("OperationFailedResult(op-99) = %+v, %v; want nil, false", got, ok)
	}
	if !strings.Contains(logs.String(), "Scripting failed") || !strings.Contains(logs.String(), "boom") {
		t.Errorf("expected an error log with the message, got %q", logs.String())
	}
}

func TestService_OnScriptingCompleteIgnoresNonFailures(t *testing.T) {
	tests := []struct {
		name string
		res  *CompleteResult
	}{
		{name: "nil result", res: nil},
		{name: "success", res: &CompleteResult{HasError: false, Success: true, OperationID: "op-1"}},
		{name: "error flag without message", res: &CompleteResult{HasError: true, ErrorMessage: "", OperationID: "op-1"}},
		{name: "message without error flag", res: &CompleteResult{ErrorMessage: "ignored", OperationID: "op-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, logs := newTestService(mapResolver{})
			svc.OnScriptingComplete(1, tt.res)

			if got, ok := svc.OperationFailedResult("op-1"); ok {
				t.Errorf("OperationFailedResult(op-1) = %+v, want nothing recorded", got)
			}
			if logs.Len() != 0 {
				t.Errorf("expected no log output, got %q", logs.String())
			}
		})
	}
}

func TestService_OnScriptingCompleteWithoutOperationID(t *testing.T) {
	svc, logs := newTestService(mapResolver{})
	svc.OnScriptingComplete(3, &CompleteResult{HasError: true, ErrorMessage: "lost"})

	if got, ok := svc.OperationFailedResult(""); ok {
		t.Errorf("OperationFailedResult(\"\") = %+v, want nothing", got)
	}
	if !strings.Contains(logs.String(), "lost") {
		t.Errorf("failure without operation id should still be logged, got %q", logs.String())
	}
}

func TestService_OnScriptingCompleteOverwrites(t *testing.T) {
	svc, _ := newTestService(mapResolver{})
	svc.OnScriptingComplete(1, &CompleteResult{HasError: true, ErrorMessage: "first", OperationID: "op-42"})
	second := &CompleteResult{HasError: true, ErrorMessage: "second", OperationID: "op-42"}
	svc.OnScriptingComplete(2, second)

	got, ok := svc.OperationFailedResult("op-42")
	if !ok || got != second {
		t.Errorf("OperationFailedResult(op-42) = %+v, want the second record", got)
	}
}

func TestService_Providers(t *testing.T) {
	svc, _ := newTestService(mapResolver{})
	svc.RegisterProvider("sqlite", &recordingProvider{})
	svc.RegisterProvider("postgresql", &recordingProvider{})

	want := []string{"postgresql", "sqlite"}
	if got := svc.Providers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
	if svc.HasProvider("mysql") {
		t.Error("HasProvider(mysql) = true, want false")
	}
}

func TestService_ConcurrentCompletions(t *testing.T) {
	svc, _ := newTestService(mapResolver{})
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(handle int, opID string) {
			defer wg.Done()
			svc.OnScriptingComplete(handle, &CompleteResult{HasError: true, ErrorMessage: "failed " + opID, OperationID: opID})
		}(i, id)
	}
	wg.Wait()

	for _, id := range ids {
		if _, ok := svc.OperationFailedResult(id); !ok {
			t.Errorf("missing failure record for %s", id)
		}
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{in: "select", want: Select},
		{in: "CREATE", want: Create},
		{in: " alter ", want: Alter},
		{in: "execute", want: Execute},
		{in: "merge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperation(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOperation(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != strings.ToLower(strings.TrimSpace(tt.in)) {
				t.Errorf("String() = %q, want %q", got.String(), strings.ToLower(strings.TrimSpace(tt.in)))
			}
		})
	}
}

func TestParseMetadataType(t *testing.T) {
	tests := []struct {
		in   string
		want MetadataType
	}{
		{in: "table", want: Table},
		{in: "View", want: View},
		{in: "proc", want: StoredProcedure},
		{in: "storedprocedure", want: StoredProcedure},
		{in: "function", want: Function},
	}
	for _, tt := range tests {
		got, err := ParseMetadataType(tt.in)
		if err != nil {
			t.Errorf("ParseMetadataType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetadataType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseMetadataType("sequence"); err == nil {
		t.Error("ParseMetadataType(sequence) expected error")
	}
}
