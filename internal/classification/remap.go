package classification

import (
	"sort"
	"strings"

	"github.com/olegiv/cvslog-analyzer/internal/rcslog"
)

// Apply returns a copy of records with the mapping applied to structured
// categories. For every structured record whose category is remapped, the
// category and the leading "#CATEGORY#" token of the message are rewritten;
// minutes and comment stay as parsed. The input slice is not modified.
func Apply(records []rcslog.Record, m *Mapping) []rcslog.Record {
	out := make([]rcslog.Record, len(records))
	copy(out, records)

	if m.Len() == 0 {
		return out
	}

	table := m.resolved()
	for i := range out {
		r := &out[i]
		if !r.IsStructured || r.Category == "" {
			continue
		}
		target, ok := table[r.Category]
		if !ok {
			continue
		}
		r.Message = rewriteCategory(r.Message, r.Category, target)
		r.Category = target
	}
	return out
}

// rewriteCategory replaces the leading "#old#" token of message.
func rewriteCategory(message, old, target string) string {
	prefix := "#" + old + "#"
	if !strings.HasPrefix(message, prefix) {
		return message
	}
	return "#" + target + "#" + message[len(prefix):]
}

// Categories lists the distinct structured categories of records, sorted.
func Categories(records []rcslog.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out
}
