// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package scripting dispatches "generate script" requests to the provider that owns
// a connection and records failed asynchronous scripting operations so they can be
// inspected later.
//
// Providers register under the id the connection resolver reports for their
// connections (for example "postgresql" or "sqlite"). A request for a connection
// with no provider is not an error: Script returns a nil result and nil error.
package scripting

import (
	"context"
	"sort"
	"sync"

	apperr "dbscript/cli/internal/errors"

	"github.com/pterm/pterm"
)

// Service is the scripting dispatcher and completion recorder.
type Service struct {
	resolver ConnectionResolver
	logger   *pterm.Logger

	mu        sync.RWMutex
	providers map[string]Provider
	failed    map[string]*CompleteResult
}

// NewService creates a Service that resolves providers through resolver.
// A nil logger falls back to pterm.DefaultLogger.
func NewService(resolver ConnectionResolver, logger *pterm.Logger) *Service {
	if logger == nil {
		l := pterm.DefaultLogger
		logger = &l
	}
	return &Service{
		resolver:  resolver,
		logger:    logger,
		providers: make(map[string]Provider),
		failed:    make(map[string]*CompleteResult),
	}
}

// RegisterProvider registers p under providerID, replacing any earlier registration.
func (s *Service) RegisterProvider(providerID string, p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[providerID] = p
}

// Script generates a script for metadata using the provider that owns connectionURI.
// It returns (nil, nil) when the connection has no provider id or no provider is
// registered under it. Provider results and errors are returned unchanged.
func (s *Service) Script(ctx context.Context, connectionURI string, metadata ObjectMetadata, op Operation, params ParamDetails) (*Result, error) {
	providerID := s.resolver.ProviderID(connectionURI)
	if providerID == "" {
		return nil, nil
	}

	s.mu.RLock()
	provider, ok := s.providers[providerID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if provider == nil {
		return nil, apperr.New(apperr.ProviderUnavailable, "provider "+providerID+" is registered without an implementation")
	}

	return provider.ScriptAsOperation(ctx, connectionURI, op, metadata, params)
}

// OnScriptingComplete records failed operations reported by providers.
// Only results with HasError and a non-empty ErrorMessage are logged; of those,
// only the ones carrying an operation id are kept. The handle is not used.
func (s *Service) OnScriptingComplete(handle int, res *CompleteResult) {
	if res == nil || !res.HasError || res.ErrorMessage == "" {
		return
	}

	s.logger.Error("Scripting failed", s.logger.Args(
		"error", res.ErrorMessage,
		"operation_id", res.OperationID,
		"handle", handle,
	))

	if res.OperationID == "" {
		return
	}
	s.mu.Lock()
	s.failed[res.OperationID] = res
	s.mu.Unlock()
}

// OperationFailedResult returns the failure recorded for operationID, if any.
func (s *Service) OperationFailedResult(operationID string) (*CompleteResult, bool) {
	if operationID == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.failed[operationID]
	return res, ok
}

// Providers returns the registered provider ids in sorted order.
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasProvider reports whether a provider is registered under providerID.
func (s *Service) HasProvider(providerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.providers[providerID]
	return ok
}
