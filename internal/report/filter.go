// Package report selects, orders and summarizes parsed revision records.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
)

// File name prefixes excluded by the corresponding Filter switches.
var (
	AuxiliaryPrefixes = []string{"Ana", "Dig"}
	TemporaryPrefixes = []string{".#", ".nfs"}
)

const atticSegment = "/Attic/"

// Filter selects records. Zero values disable a criterion.
type Filter struct {
	StructuredOnly   bool
	ExcludeAuxiliary bool
	ExcludeTemporary bool
	ExcludeAttic     bool

	Facilities   []string
	Regions      []string
	FileNames    []string
	Authors      []string
	PathContains string // case-insensitive

	// From and To bound the commit date, inclusive, at day granularity.
	From time.Time
	To   time.Time
}

// Apply returns the matching records in their original order.
func (f Filter) Apply(records []rcslog.Record) []rcslog.Record {
	facilities := toSet(f.Facilities)
	regions := toSet(f.Regions)
	files := toSet(f.FileNames)
	authors := toSet(f.Authors)
	path := strings.ToLower(f.PathContains)

	out := make([]rcslog.Record, 0, len(records))
	for _, r := range records {
		if f.StructuredOnly && !r.IsStructured {
			continue
		}
		if f.ExcludeAuxiliary && hasAnyPrefix(r.FileName, AuxiliaryPrefixes) {
			continue
		}
		if f.ExcludeTemporary && hasAnyPrefix(r.FileName, TemporaryPrefixes) {
			continue
		}
		if f.ExcludeAttic && strings.Contains(r.RepositoryPath, atticSegment) {
			continue
		}
		if facilities != nil && !facilities[r.Facility] {
			continue
		}
		if regions != nil && !regions[r.Region] {
			continue
		}
		if files != nil && !files[r.FileName] {
			continue
		}
		if authors != nil && !authors[r.Author] {
			continue
		}
		if path != "" && !strings.Contains(strings.ToLower(r.RepositoryPath), path) {
			continue
		}
		if !f.inDateRange(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f Filter) inDateRange(r rcslog.Record) bool {
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, ok := r.Timestamp()
	if !ok {
		return false
	}
	day := truncateDay(ts)
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	return true
}

// Options are the values available for the facet filters. Categories lists
// the current structured categories, the candidates for a merge.
type Options struct {
	FileNames  []string `json:"file_names"`
	Authors    []string `json:"authors"`
	Facilities []string `json:"facilities"`
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
}

// AvailableOptions lists the sorted distinct facet values of records after
// the auxiliary and temporary file exclusions.
func AvailableOptions(records []rcslog.Record, excludeAuxiliary, excludeTemporary bool) Options {
	base := Filter{ExcludeAuxiliary: excludeAuxiliary, ExcludeTemporary: excludeTemporary}.Apply(records)

	var files, authors, facilities, regions []string
	for _, r := range base {
		files = append(files, r.FileName)
		authors = append(authors, r.Author)
		facilities = append(facilities, r.Facility)
		regions = append(regions, r.Region)
	}
	return Options{
		FileNames:  uniqueSorted(files),
		Authors:    uniqueSorted(authors),
		Facilities: uniqueSorted(facilities),
		Regions:    uniqueSorted(regions),
	}
}

// SortNewestFirst orders records by date and time, newest first.
// Records without a parseable date go last, keeping their relative order.
func SortNewestFirst(records []rcslog.Record) []rcslog.Record {
	out := make([]rcslog.Record, len(records))
	copy(out, records)

	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := out[i].Timestamp()
		tj, okJ := out[j].Timestamp()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
	return out
}

// ParseDate parses a DD/MM/YYYY date as used in records and CLI flags.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("02/01/2006", s)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// uniqueSorted drops empty values and duplicates.
func uniqueSorted(values []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
