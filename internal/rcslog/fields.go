package rcslog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	archiveSuffix = ",v"

	recordDateLayout = "02/01/2006"
	recordTimeLayout = "15:04:05"
)

// Layouts accepted in the "date:" field, most specific first.
// Unpadded fields also accept zero-padded input.
var timestampLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006/1/2 15:4:5", true},
	{"2006/1/2", false},
}

var structuredMessageRegex = regexp.MustCompile(`^#([^#]+)#([^#]*)#(.+)$`)

// Structured holds the fields decoded from a "#CATEGORY#MINUTES#COMMENT" message.
type Structured struct {
	Category string
	Minutes  *float64
	Comment  string
}

// SplitTimestamp converts a log timestamp into a DD/MM/YYYY date and a 24h clock.
// A date without time yields midnight. Unparseable input yields two empty strings.
func SplitTimestamp(s string) (date, clock string) {
	if s == "" {
		return "", ""
	}
	for _, l := range timestampLayouts {
		ts, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		if !l.hasTime {
			return ts.Format(recordDateLayout), "00:00:00"
		}
		return ts.Format(recordDateLayout), ts.Format(recordTimeLayout)
	}
	return "", ""
}

// DecodeStructuredMessage extracts category, minutes and comment from a message
// following the #CATEGORY#MINUTES#COMMENT convention.
// Anything else decodes to the zero value.
func DecodeStructuredMessage(message string) Structured {
	if !strings.HasPrefix(message, "#") {
		return Structured{}
	}
	m := structuredMessageRegex.FindStringSubmatch(message)
	if m == nil {
		return Structured{}
	}
	return Structured{
		Category: m[1],
		Minutes:  parseMinutes(m[2]),
		Comment:  m[3],
	}
}

// parseMinutes accepts finite decimal numbers only; hex floats, NaN and
// infinities decode to nil.
func parseMinutes(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// CleanPath strips the repository root prefix and the ",v" archive suffix.
func CleanPath(path, rootPrefix string) string {
	if prefix := strings.TrimSuffix(rootPrefix, "/"); prefix != "" {
		path = strings.TrimPrefix(path, prefix)
	}
	return strings.TrimSuffix(path, archiveSuffix)
}

// FileName returns the last path segment of an archive path without ",v".
func FileName(path string) string {
	path = strings.TrimSuffix(path, archiveSuffix)
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// FinalizeMessage joins collected message lines into a single line.
// Leading and trailing blank lines are dropped and the CVS empty-message
// placeholder becomes the empty string.
func FinalizeMessage(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	message := strings.TrimSpace(strings.Join(lines[start:end], " "))
	if message == EmptyLogMessage {
		return ""
	}
	return message
}
