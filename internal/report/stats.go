package report

import (
	"sort"

	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
)

const (
	topFilesByCount   = 5
	topFilesByMinutes = 10
	topRegions        = 10
)

// Bucket is one group of a statistic.
type Bucket struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Minutes float64 `json:"minutes"`
}

// Statistics summarizes structured records that carry both a category and minutes.
type Statistics struct {
	Records        int     `json:"records"`
	TotalMinutes   float64 `json:"total_minutes"`
	AverageMinutes float64 `json:"average_minutes"`

	CategoryCounts    []Bucket `json:"category_counts"`
	CategoryMinutes   []Bucket `json:"category_minutes"`
	TopFilesByCount   []Bucket `json:"top_files_by_count"`
	TopFilesByMinutes []Bucket `json:"top_files_by_minutes"`
	Facilities        []Bucket `json:"facilities"`
	TopRegions        []Bucket `json:"top_regions"`
	TopRegionsMinutes []Bucket `json:"top_regions_by_minutes"`
}

// Summarize computes Statistics over records.
func Summarize(records []rcslog.Record) *Statistics {
	categories := newGrouper()
	files := newGrouper()
	facilities := newGrouper()
	regions := newGrouper()

	stats := &Statistics{}
	for _, r := range records {
		if r.Category == "" || r.Minutes == nil {
			continue
		}
		m := *r.Minutes
		stats.Records++
		stats.TotalMinutes += m

		categories.add(r.Category, m)
		files.add(r.FileName, m)
		if r.Facility != "" {
			facilities.add(r.Facility, m)
		}
		regions.add(r.Region, m)
	}

	if stats.Records > 0 {
		stats.AverageMinutes = stats.TotalMinutes / float64(stats.Records)
	}

	stats.CategoryCounts = categories.byCount(0)
	stats.CategoryMinutes = categories.byMinutes(0)
	stats.TopFilesByCount = files.byCount(topFilesByCount)
	stats.TopFilesByMinutes = files.byMinutes(topFilesByMinutes)
	stats.Facilities = facilities.byCount(0)
	stats.TopRegions = regions.byCount(topRegions)
	stats.TopRegionsMinutes = regions.byMinutes(topRegions)

	return stats
}

type grouper struct {
	buckets map[string]*Bucket
}

func newGrouper() *grouper {
	return &grouper{buckets: make(map[string]*Bucket)}
}

func (g *grouper) add(key string, minutes float64) {
	b, ok := g.buckets[key]
	if !ok {
		b = &Bucket{Key: key}
		g.buckets[key] = b
	}
	b.Count++
	b.Minutes += minutes
}

func (g *grouper) byCount(limit int) []Bucket {
	return g.sorted(limit, func(a, b Bucket) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Key < b.Key
	})
}

func (g *grouper) byMinutes(limit int) []Bucket {
	return g.sorted(limit, func(a, b Bucket) bool {
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.Key < b.Key
	})
}

// sorted returns up to limit buckets (all when limit is 0).
func (g *grouper) sorted(limit int, less func(a, b Bucket) bool) []Bucket {
	out := make([]Bucket, 0, len(g.buckets))
	for _, b := range g.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
