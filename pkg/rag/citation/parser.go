package citation

import (
	"regexp"
)

// Marker is a single citation marker extracted from raw generated text.
type Marker struct {
	SourceID    string // stable document identifier inside the marker
	OriginalRaw string // the full matched text
	Offset      int    // byte offset of the match in the input
}

// ParseResult contains all markers found in one pass over the raw text.
type ParseResult struct {
	Markers    []Marker
	HasMarkers bool
}

// Raw marker pattern: [cite:<source_id>]
// Source ids are DOIs or equivalent external ids, so anything except
// brackets and whitespace is accepted inside the marker. Rendered
// numeric markers ([3]) deliberately do not match, which is what makes
// rewriting idempotent.
var markerPattern = regexp.MustCompile(`\[cite:([^\[\]\s]+)\]`)

// ParseMarkers extracts all stable-id citation markers from raw text.
// Rendered text contains no such markers, so running this over an
// already-rewritten message returns an empty result.
func ParseMarkers(raw string) *ParseResult {
	result := &ParseResult{
		Markers: make([]Marker, 0),
	}

	matches := markerPattern.FindAllStringSubmatchIndex(raw, -1)
	for _, m := range matches {
		// m[0]:m[1] is the full match, m[2]:m[3] the source id group
		result.Markers = append(result.Markers, Marker{
			SourceID:    raw[m[2]:m[3]],
			OriginalRaw: raw[m[0]:m[1]],
			Offset:      m[0],
		})
	}

	result.HasMarkers = len(result.Markers) > 0
	return result
}
