// Package analyzer defines the collaborators around the revision log parser:
// where raw log text comes from and where summarized results go.
package analyzer

import "github.com/olegiv/cvslog-analyzer/internal/report"

// LogReader reads and validates raw cvs log text from a source.
type LogReader interface {
	// Read reads log content from the specified source path.
	// Returns UTF-8 text ready for parsing.
	Read(sourcePath string) (string, error)

	// Validate checks if the content looks like cvs log output.
	// Called internally by Read, but exposed for testing.
	Validate(content string) error

	// GetSourceInfo returns metadata about the log source.
	// Common keys: size_bytes, size_mb, modified, age_hours
	GetSourceInfo(sourcePath string) (map[string]interface{}, error)
}

// ReportNotifier delivers a statistics summary to an external channel.
type ReportNotifier interface {
	// SendRevisionReport sends stats computed from the log at sourceName.
	SendRevisionReport(stats *report.Statistics, sourceName string) error

	// Close releases the notifier's resources.
	Close() error
}
