// Package rcslog parses RCS/CVS "log" output into revision records.
// Parsing is pure: malformed sections are dropped and unparseable fields
// degrade to empty values, so callers only ever see an empty result, never an error.
package rcslog

import "time"

// Defaults for the repository layout the analyzer was written for.
const (
	DefaultRootPrefix     = "/export/cvs"
	DefaultFacilityMarker = "telas/Centro"
	DefaultRegion         = "GENERAL"
)

// EmptyLogMessage is the placeholder CVS writes for commits without a message.
const EmptyLogMessage = "*** empty log message ***"

// Record is one revision of one tracked file.
// String fields are empty when the source did not provide a value.
type Record struct {
	RepositoryPath string   `json:"repository_path"`
	FileName       string   `json:"file_name"`
	RevisionID     string   `json:"revision"`
	Author         string   `json:"author,omitempty"`
	Date           string   `json:"date,omitempty"` // DD/MM/YYYY
	Time           string   `json:"time,omitempty"` // HH:MM:SS
	Message        string   `json:"message"`
	IsStructured   bool     `json:"is_structured"`
	Category       string   `json:"category,omitempty"`
	Minutes        *float64 `json:"minutes,omitempty"`
	Comment        string   `json:"comment,omitempty"`
	Facility       string   `json:"facility,omitempty"`
	Region         string   `json:"region"`
}

// Timestamp rebuilds the commit time from Date and Time.
// Returns false when the record carries no parseable date.
func (r Record) Timestamp() (time.Time, bool) {
	if r.Date == "" {
		return time.Time{}, false
	}
	clock := r.Time
	if clock == "" {
		clock = "00:00:00"
	}
	ts, err := time.Parse(recordDateLayout+" "+recordTimeLayout, r.Date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Options controls the deployment-specific parts of record assembly.
type Options struct {
	// RootPrefix is stripped from archive paths (with or without trailing slash).
	RootPrefix string
	// FacilityMarker is the slash-separated directory sequence that precedes the facility segment.
	FacilityMarker string
	// DefaultRegion is used when no region segment can be derived.
	DefaultRegion string
}

// DefaultOptions returns the options for the default repository layout.
func DefaultOptions() Options {
	return Options{
		RootPrefix:     DefaultRootPrefix,
		FacilityMarker: DefaultFacilityMarker,
		DefaultRegion:  DefaultRegion,
	}
}
