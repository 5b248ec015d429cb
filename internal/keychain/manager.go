// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for dbscript.
// Saved connection profiles contain credentials, so they are stored in the OS
// keychain/credential store rather than in the config file. An index entry keeps
// the list of saved connection names because not every backend can enumerate keys.
package keychain

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "dbscript"

// keyConnectionIndex holds the JSON list of saved connection names.
const keyConnectionIndex = "connections_index"

// ErrNotFound is returned when a connection has not been saved.
var ErrNotFound = errors.New("connection not found in keychain")

func connectionKey(name string) string { return "connection:" + name }

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowedBackends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, fmt.Errorf("secure storage not supported on %s", runtime.GOOS)
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keychain: %w", err)
	}
	return ring, nil
}

// SaveConnection stores the serialized profile for name and records it in the index.
// This method is thread-safe.
func (m *Manager) SaveConnection(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Set(keyring.Item{Key: connectionKey(name), Data: data, Label: "dbscript connection " + name}); err != nil {
		return err
	}

	names, err := m.readIndex()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return m.writeIndex(append(names, name))
}

// LoadConnection retrieves the serialized profile saved under name.
// This method is thread-safe.
func (m *Manager) LoadConnection(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(connectionKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it.Data, nil
}

// ListConnections returns the saved connection names in sorted order.
// This method is thread-safe.
func (m *Manager) ListConnections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names, err := m.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// RemoveConnection deletes the profile saved under name. Removing an unknown name is not an error.
// This method is thread-safe.
func (m *Manager) RemoveConnection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(connectionKey(name)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}

	names, err := m.readIndex()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	return m.writeIndex(kept)
}

// ClearAll removes every saved connection from the keychain.
// This method is thread-safe and should be used with caution.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.readIndex()
	if err != nil {
		return err
	}
	for _, n := range names {
		_ = m.ring.Remove(connectionKey(n))
	}
	_ = m.ring.Remove(keyConnectionIndex)
	return nil
}

// readIndex must be called with m.mu held.
func (m *Manager) readIndex() ([]string, error) {
	it, err := m.ring.Get(keyConnectionIndex)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	if len(it.Data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(it.Data, &names); err != nil {
		return nil, fmt.Errorf("decode connection index: %w", err)
	}
	return names, nil
}

// writeIndex must be called with m.mu held for writing.
func (m *Manager) writeIndex(names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return m.ring.Set(keyring.Item{Key: keyConnectionIndex, Data: data})
}
