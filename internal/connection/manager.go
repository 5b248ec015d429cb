// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package connection keeps the named connection profiles known to the application
// and resolves which scripting provider owns each of them. The connection URI used
// throughout the scripting layer is the profile name.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dbscript/cli/internal/dsn"
	apperr "dbscript/cli/internal/errors"
)

// Profile is a named connection.
type Profile struct {
	Name string `json:"name" yaml:"name"`
	DSN  string `json:"dsn" yaml:"dsn"`
	// Provider overrides the provider id derived from the DSN,
	// for connections served by a remote scripting host.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// ProviderID returns the id of the scripting provider that owns the profile.
func (p Profile) ProviderID() string {
	if p.Provider != "" {
		return p.Provider
	}
	return dsn.ProviderID(p.DSN)
}

// Validate checks the profile name and, unless a provider is set explicitly, its DSN.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.New(apperr.InvalidConnection, "connection name is required")
	}
	if strings.ContainsAny(p.Name, " \t\n/") {
		return apperr.New(apperr.InvalidConnection, fmt.Sprintf("connection name %q must not contain whitespace or '/'", p.Name))
	}
	if strings.TrimSpace(p.DSN) == "" {
		return apperr.New(apperr.InvalidConnection, fmt.Sprintf("connection %q has no DSN", p.Name))
	}
	if p.Provider != "" {
		return nil
	}
	if err := dsn.Validate(p.DSN); err != nil {
		return apperr.Wrap(apperr.InvalidConnection, fmt.Sprintf("connection %q", p.Name), err)
	}
	return nil
}

// Store persists serialized profiles. The keychain manager implements it.
type Store interface {
	SaveConnection(name string, data []byte) error
	LoadConnection(name string) ([]byte, error)
	ListConnections() ([]string, error)
	RemoveConnection(name string) error
}

// Manager holds connection profiles in memory, optionally backed by a Store.
type Manager struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	store    Store
}

// NewManager creates a Manager. store may be nil for an in-memory only manager.
func NewManager(store Store) *Manager {
	return &Manager{
		profiles: make(map[string]Profile),
		store:    store,
	}
}

// Add validates p, persists it when a store is configured and makes it resolvable.
// An existing profile with the same name is replaced.
func (m *Manager) Add(p Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	p.DSN = strings.TrimSpace(p.DSN)
	if err := p.Validate(); err != nil {
		return err
	}

	if m.store != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := m.store.SaveConnection(p.Name, data); err != nil {
			return fmt.Errorf("save connection %q: %w", p.Name, err)
		}
	}

	m.mu.Lock()
	m.profiles[p.Name] = p
	m.mu.Unlock()
	return nil
}

// Load restores every persisted profile. Entries that cannot be decoded are
// skipped and reported together in the returned error.
func (m *Manager) Load() error {
	if m.store == nil {
		return nil
	}
	names, err := m.store.ListConnections()
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	var errs []error
	loaded := make(map[string]Profile, len(names))
	for _, name := range names {
		data, err := m.store.LoadConnection(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("load connection %q: %w", name, err))
			continue
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			errs = append(errs, fmt.Errorf("decode connection %q: %w", name, err))
			continue
		}
		p.Name = name
		loaded[name] = p
	}

	m.mu.Lock()
	for name, p := range loaded {
		m.profiles[name] = p
	}
	m.mu.Unlock()
	return errors.Join(errs...)
}

// Get returns the profile registered under name.
func (m *Manager) Get(name string) (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	return p, ok
}

// List returns all profiles sorted by name.
func (m *Manager) List() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remove forgets the profile and deletes it from the store.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	_, ok := m.profiles[name]
	delete(m.profiles, name)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.RemoveConnection(name); err != nil {
			return fmt.Errorf("remove connection %q: %w", name, err)
		}
	}
	if !ok {
		return apperr.New(apperr.InvalidConnection, fmt.Sprintf("no connection named %q", name))
	}
	return nil
}

// ProviderID resolves the provider id for connectionURI, or "" when the
// connection is unknown or no provider handles its database type.
func (m *Manager) ProviderID(connectionURI string) string {
	p, ok := m.Get(connectionURI)
	if !ok {
		return ""
	}
	return p.ProviderID()
}

// DSN returns the connection string for connectionURI.
func (m *Manager) DSN(connectionURI string) (string, bool) {
	p, ok := m.Get(connectionURI)
	if !ok {
		return "", false
	}
	return p.DSN, true
}
