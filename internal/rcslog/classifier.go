package rcslog

import "strings"

// PathClassifier derives facility and region from an archive path.
//
// The facility is the directory right after the marker segments. The region is
// the directory after the facility, but only when something else follows it;
// a file sitting directly in the facility directory belongs to the default region.
type PathClassifier struct {
	marker        []string
	defaultRegion string
}

// NewPathClassifier creates a classifier for the given marker, e.g. "telas/Centro".
func NewPathClassifier(marker, defaultRegion string) *PathClassifier {
	var segments []string
	for _, s := range strings.Split(marker, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return &PathClassifier{
		marker:        segments,
		defaultRegion: defaultRegion,
	}
}

// DefaultRegion returns the sentinel region.
func (c *PathClassifier) DefaultRegion() string {
	return c.defaultRegion
}

// Classify returns the facility (empty if the marker is absent) and the region.
func (c *PathClassifier) Classify(path string) (facility, region string) {
	region = c.defaultRegion
	if len(c.marker) == 0 {
		return "", region
	}

	segments := strings.Split(path, "/")
	idx := c.markerIndex(segments)
	if idx < 0 {
		return "", region
	}

	facilityIdx := idx + len(c.marker)
	if facilityIdx >= len(segments) || segments[facilityIdx] == "" {
		return "", region
	}
	facility = segments[facilityIdx]

	rest := segments[facilityIdx+1:]
	if len(rest) > 1 && rest[0] != "" {
		region = rest[0]
	}
	return facility, region
}

// markerIndex finds the first occurrence of the marker that is preceded by a slash.
func (c *PathClassifier) markerIndex(segments []string) int {
	for i := 1; i+len(c.marker) <= len(segments); i++ {
		matched := true
		for j, m := range c.marker {
			if segments[i+j] != m {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}
