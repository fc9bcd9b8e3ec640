// Package session keeps the currently loaded log and the analyst's
// classification mapping. Records are reparsed only when the log content
// changes; the mapping survives reloads and is applied on every read.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/olegiv/cvslog-analyzer/internal/classification"
	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
)

// Session is safe for concurrent use.
type Session struct {
	parser  *rcslog.Parser
	workers int

	mu      sync.RWMutex
	hash    string
	records []rcslog.Record
	mapping *classification.Mapping
}

// New creates an empty session. workers > 1 parses sections concurrently.
func New(parser *rcslog.Parser, workers int) *Session {
	return &Session{
		parser:  parser,
		workers: workers,
		mapping: classification.NewMapping(),
	}
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Load makes content the current log. It reparses only when the content hash
// differs from the loaded one and reports whether it did.
func (s *Session) Load(content string) bool {
	hash := ContentHash(content)

	s.mu.RLock()
	unchanged := s.hash == hash && s.records != nil
	s.mu.RUnlock()
	if unchanged {
		return false
	}

	records := s.parse(content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = hash
	s.records = records
	return true
}

// Restore installs records that were parsed earlier for the content with hash,
// e.g. loaded from storage.
func (s *Session) Restore(hash string, records []rcslog.Record) {
	if records == nil {
		records = []rcslog.Record{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = hash
	s.records = records
}

func (s *Session) parse(content string) []rcslog.Record {
	var records []rcslog.Record
	if s.workers > 1 {
		records = s.parser.ParseConcurrent(content, s.workers)
	} else {
		records = s.parser.Parse(content)
	}
	if records == nil {
		records = []rcslog.Record{}
	}
	return records
}

// Hash returns the hash of the loaded content, empty when nothing is loaded.
func (s *Session) Hash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hash
}

// RawRecords returns the records as parsed, without the mapping.
func (s *Session) RawRecords() []rcslog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rcslog.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Records returns the loaded records with the current mapping applied.
func (s *Session) Records() []rcslog.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return classification.Apply(s.records, s.mapping)
}

// Mapping exposes the session's mapping.
func (s *Session) Mapping() *classification.Mapping {
	return s.mapping
}

// Merge groups source categories into target.
func (s *Session) Merge(target string, sources ...string) {
	s.mapping.Merge(target, sources...)
}

// ClearMapping drops every regrouping.
func (s *Session) ClearMapping() {
	s.mapping.Clear()
}

