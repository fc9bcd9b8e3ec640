// Package classification regroups structured commit categories.
//
// A Mapping is an analyst-maintained rename table (old category -> new category).
// Apply derives a new record slice from parsed records; the parsed records and
// the log text they came from are never modified, so clearing the mapping
// restores the original view.
package classification

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Mapping is a concurrency-safe old->new category store. Last write wins.
// Entries never form a cycle, so every category resolves to one that is not
// remapped.
type Mapping struct {
	mu      sync.RWMutex
	entries map[string]string
}

// mappingFile is the on-disk YAML layout.
type mappingFile struct {
	Mappings map[string]string `yaml:"mappings"`
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{entries: make(map[string]string)}
}

// NewMappingFrom creates a mapping holding a copy of entries, set in sorted
// key order.
func NewMappingFrom(entries map[string]string) *Mapping {
	keys := make([]string, 0, len(entries))
	for old := range entries {
		keys = append(keys, old)
	}
	sort.Strings(keys)

	m := NewMapping()
	for _, old := range keys {
		m.Set(old, entries[old])
	}
	return m
}

// Set maps old to target. Empty values and identity entries are ignored.
// When target already resolves back to old, the entry that remapped target
// is dropped, so {A:B} followed by Set(B, A) sends both to A.
func (m *Mapping) Set(old, target string) {
	if old == "" || target == "" || old == target {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveLocked(target) == old {
		delete(m.entries, target)
	}
	m.entries[old] = target
}

// Merge groups every source category into target.
func (m *Mapping) Merge(target string, sources ...string) {
	for _, s := range sources {
		m.Set(s, target)
	}
}

// Get returns the direct target of old.
func (m *Mapping) Get(old string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target, ok := m.entries[old]
	return target, ok
}

// Resolve follows the mapping from category until it reaches a category that
// is not remapped, so {A:B, B:C} sends A to C.
func (m *Mapping) Resolve(category string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resolveLocked(category)
}

func (m *Mapping) resolveLocked(category string) string {
	seen := map[string]bool{category: true}
	current := category
	for {
		next, ok := m.entries[current]
		if !ok || seen[next] {
			return current
		}
		seen[next] = true
		current = next
	}
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of the raw entries.
func (m *Mapping) Entries() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Keys returns the remapped categories in sorted order.
func (m *Mapping) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every entry.
func (m *Mapping) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]string)
}

// resolved returns the fully resolved table used by Apply.
func (m *Mapping) resolved() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.entries))
	for old := range m.entries {
		if target := m.resolveLocked(old); target != old {
			out[old] = target
		}
	}
	return out
}

// LoadFile reads a YAML mapping file. A missing file yields an empty mapping.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMapping(), nil
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}
	return NewMappingFrom(f.Mappings), nil
}

// SaveFile writes the mapping as YAML, creating parent directories.
func (m *Mapping) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	data, err := yaml.Marshal(mappingFile{Mappings: m.Entries()})
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	return nil
}
