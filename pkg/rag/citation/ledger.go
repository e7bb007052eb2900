package citation

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceMeta is the display metadata carried into the ledger the first
// time a source is cited.
type SourceMeta struct {
	Title   string
	Journal string
}

// Entry is one ledger row. Position is the insertion order within the
// conversation and never changes once assigned; the display number shown
// to readers is always derived as position in the ordered ledger + 1.
type Entry struct {
	SourceID       string
	Title          string
	Journal        string
	FirstCitedTurn int
	Position       int
}

// Ledger is the append-only citation registry of one conversation.
// Entries are never mutated or reordered after insertion.
type Ledger struct {
	entries  []*Entry
	bySource map[string]*Entry
}

func NewLedger() *Ledger {
	return &Ledger{
		entries:  make([]*Entry, 0),
		bySource: make(map[string]*Entry),
	}
}

// LedgerFromEntries rebuilds a ledger from persisted rows. The input must
// already be ordered by position ascending, which is how the repository
// returns it.
func LedgerFromEntries(entries []*Entry) *Ledger {
	l := NewLedger()
	for _, e := range entries {
		l.entries = append(l.entries, e)
		l.bySource[e.SourceID] = e
	}
	return l
}

// Record registers a cited source. The first sighting wins: metadata and
// FirstCitedTurn of an already-known source are left untouched. Returns
// the ledger entry and whether it was newly appended.
func (l *Ledger) Record(sourceID string, meta SourceMeta, turn int) (*Entry, bool) {
	if existing, ok := l.bySource[sourceID]; ok {
		return existing, false
	}
	entry := &Entry{
		SourceID:       sourceID,
		Title:          meta.Title,
		Journal:        meta.Journal,
		FirstCitedTurn: turn,
		Position:       len(l.entries),
	}
	l.entries = append(l.entries, entry)
	l.bySource[sourceID] = entry
	return entry, true
}

// DisplayNumber derives the 1-based reader-facing number for a source
// from its ledger position.
func (l *Ledger) DisplayNumber(sourceID string) (int, bool) {
	entry, ok := l.bySource[sourceID]
	if !ok {
		return 0, false
	}
	return entry.Position + 1, true
}

func (l *Ledger) Has(sourceID string) bool {
	_, ok := l.bySource[sourceID]
	return ok
}

func (l *Ledger) Entries() []*Entry {
	return l.entries
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// RewriteResult reports what a rewrite pass did, for logging and for
// deciding which ledger entries are new and need persisting.
type RewriteResult struct {
	Rendered       string
	NewEntries     []*Entry
	UnknownSources []string // marker ids with no grounded source this turn
}

// Rewrite converts raw marker text into rendered reader-facing text.
// Each recognized [cite:<id>] becomes [N] where N is the source's derived
// display number, recording first-time sources into the ledger. Markers
// whose id is not in the grounded set are left verbatim and reported, so
// an anomaly is visible in the text instead of silently vanishing.
// Adjacent duplicate numbers collapse into one.
//
// Rewriting is idempotent: resolved markers become [N] which never
// re-matches, and unresolved markers come out of a second pass unchanged.
func (l *Ledger) Rewrite(raw string, grounded map[string]SourceMeta, turn int) *RewriteResult {
	result := &RewriteResult{}

	rendered := markerPattern.ReplaceAllStringFunc(raw, func(match string) string {
		sourceID := markerPattern.FindStringSubmatch(match)[1]
		meta, ok := grounded[sourceID]
		if !ok {
			result.UnknownSources = append(result.UnknownSources, sourceID)
			return match
		}
		entry, added := l.Record(sourceID, meta, turn)
		if added {
			result.NewEntries = append(result.NewEntries, entry)
		}
		return fmt.Sprintf("[%d]", entry.Position+1)
	})

	result.Rendered = collapseAdjacent(rendered)
	return result
}

var renderedMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// collapseAdjacent folds runs of the same rendered marker separated only
// by whitespace ("[1] [1]") into a single occurrence.
func collapseAdjacent(text string) string {
	matches := renderedMarkerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	prevEnd := -1
	prevNumber := ""

	for _, m := range matches {
		start, end := m[0], m[1]
		number := text[m[2]:m[3]]
		between := text[maxInt(prevEnd, 0):start]
		if prevEnd >= 0 && number == prevNumber && strings.TrimSpace(between) == "" {
			// duplicate of the previous marker, skip it and the gap
			cursor = end
			prevEnd = end
			continue
		}
		b.WriteString(text[cursor:end])
		cursor = end
		prevEnd = end
		prevNumber = number
	}
	b.WriteString(text[cursor:])
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
