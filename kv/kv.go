// Package kv is the key-value durability layer the stores persist
// through. Values cross the boundary as JSON, so anything a store keeps
// in a cell survives a restart with ids, field values and dates intact.
package kv

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/taskmill/taskmill/cell"
)

// Gateway is the raw byte-level contract. Missing keys are reported
// with ok=false, never an error.
type Gateway interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte) error
	Remove(key string)
}

// Get decodes the value stored under key. A missing key or a corrupt
// payload both return ok=false; the caller falls back to its defaults
// and keeps working for the session.
func Get[T any](g Gateway, key string) (T, bool) {
	var v T
	raw, ok := g.Get(key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// Set encodes v under key. Errors are returned for the caller to log;
// persistence failures are non-fatal by contract.
func Set[T any](g Gateway, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	if err := g.Set(key, raw); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// PersistEffect registers a write-back effect: whenever the watched
// value changes, its JSON encoding is written under key. Identical
// payloads are skipped via an xxhash checksum of the last write, so
// no-op recomputations upstream do not touch storage.
func PersistEffect[T any](rt *cell.Runtime, g Gateway, key string, read func() T) (stop func()) {
	var lastSum uint64
	return cell.NewEffect(rt, func() error {
		raw, err := json.Marshal(read())
		if err != nil {
			return fmt.Errorf("kv: encode %q: %w", key, err)
		}
		sum := xxhash.Sum64(raw)
		if sum == lastSum {
			return nil
		}
		if err := g.Set(key, raw); err != nil {
			return fmt.Errorf("kv: set %q: %w", key, err)
		}
		lastSum = sum
		return nil
	})
}

// Memory is a map-backed Gateway for tests and ephemeral sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	return raw, ok
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}
