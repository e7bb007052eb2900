package citation

import (
	"testing"
)

func groundedFixture() map[string]SourceMeta {
	return map[string]SourceMeta{
		"10.1038/a": {Title: "Gene drive dynamics", Journal: "Nature"},
		"10.1126/b": {Title: "Off-target effects", Journal: "Science"},
		"10.1016/c": {Title: "Base editing review", Journal: "Cell"},
	}
}

func TestLedgerRecordFirstSeenWins(t *testing.T) {
	l := NewLedger()

	first, added := l.Record("10.1038/a", SourceMeta{Title: "Original title", Journal: "Nature"}, 1)
	if !added {
		t.Fatal("first Record should append")
	}
	if first.Position != 0 {
		t.Errorf("Position = %d, want 0", first.Position)
	}

	second, added := l.Record("10.1038/a", SourceMeta{Title: "Different title", Journal: "Elsewhere"}, 5)
	if added {
		t.Error("second Record of same source should not append")
	}
	if second.Title != "Original title" {
		t.Errorf("Title = %q, want first-seen metadata kept", second.Title)
	}
	if second.FirstCitedTurn != 1 {
		t.Errorf("FirstCitedTurn = %d, want 1", second.FirstCitedTurn)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLedgerDisplayNumberStability(t *testing.T) {
	l := NewLedger()
	l.Record("10.1038/a", SourceMeta{}, 1)
	l.Record("10.1126/b", SourceMeta{}, 1)
	l.Record("10.1016/c", SourceMeta{}, 2)

	// Re-citing an early source in a later turn must not renumber anything.
	l.Record("10.1038/a", SourceMeta{}, 3)

	wantNumbers := map[string]int{
		"10.1038/a": 1,
		"10.1126/b": 2,
		"10.1016/c": 3,
	}
	for sourceID, want := range wantNumbers {
		got, ok := l.DisplayNumber(sourceID)
		if !ok {
			t.Fatalf("DisplayNumber(%q) not found", sourceID)
		}
		if got != want {
			t.Errorf("DisplayNumber(%q) = %d, want %d", sourceID, got, want)
		}
	}
}

func TestLedgerFromEntriesPreservesOrder(t *testing.T) {
	persisted := []*Entry{
		{SourceID: "10.1126/b", Position: 0, FirstCitedTurn: 1},
		{SourceID: "10.1038/a", Position: 1, FirstCitedTurn: 2},
	}
	l := LedgerFromEntries(persisted)

	if n, _ := l.DisplayNumber("10.1126/b"); n != 1 {
		t.Errorf("DisplayNumber(b) = %d, want 1", n)
	}

	// New sources continue after the restored tail.
	entry, added := l.Record("10.1016/c", SourceMeta{}, 3)
	if !added || entry.Position != 2 {
		t.Errorf("Record after restore: added=%v position=%d, want true/2", added, entry.Position)
	}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantRendered string
		wantNew      int
		wantUnknown  int
	}{
		{
			name:         "plain text untouched",
			raw:          "No citations here.",
			wantRendered: "No citations here.",
		},
		{
			name:         "markers become ordinal numbers",
			raw:          "Drives spread [cite:10.1038/a] but effects persist [cite:10.1126/b].",
			wantRendered: "Drives spread [1] but effects persist [2].",
			wantNew:      2,
		},
		{
			name:         "repeat of same source reuses number",
			raw:          "[cite:10.1038/a] first, [cite:10.1126/b] second, [cite:10.1038/a] again.",
			wantRendered: "[1] first, [2] second, [1] again.",
			wantNew:      2,
		},
		{
			name:         "adjacent duplicates collapse",
			raw:          "Strong evidence [cite:10.1038/a][cite:10.1038/a] here.",
			wantRendered: "Strong evidence [1] here.",
			wantNew:      1,
		},
		{
			name:         "adjacent duplicates with whitespace collapse",
			raw:          "Strong evidence [cite:10.1038/a] [cite:10.1038/a] here.",
			wantRendered: "Strong evidence [1] here.",
			wantNew:      1,
		},
		{
			name:         "adjacent distinct markers kept",
			raw:          "Both agree [cite:10.1038/a][cite:10.1126/b].",
			wantRendered: "Both agree [1][2].",
			wantNew:      2,
		},
		{
			name:         "unknown source left verbatim",
			raw:          "Hallucinated [cite:10.9999/nope] claim.",
			wantRendered: "Hallucinated [cite:10.9999/nope] claim.",
			wantUnknown:  1,
		},
		{
			name:         "unknown source beside a known one",
			raw:          "Grounded [cite:10.1038/a] but not [cite:10.9999/ghost].",
			wantRendered: "Grounded [1] but not [cite:10.9999/ghost].",
			wantNew:      1,
			wantUnknown:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			result := l.Rewrite(tt.raw, groundedFixture(), 1)

			if result.Rendered != tt.wantRendered {
				t.Errorf("Rendered = %q, want %q", result.Rendered, tt.wantRendered)
			}
			if len(result.NewEntries) != tt.wantNew {
				t.Errorf("NewEntries = %d, want %d", len(result.NewEntries), tt.wantNew)
			}
			if len(result.UnknownSources) != tt.wantUnknown {
				t.Errorf("UnknownSources = %d, want %d", len(result.UnknownSources), tt.wantUnknown)
			}
		})
	}
}

func TestRewriteIdempotent(t *testing.T) {
	l := NewLedger()
	raw := "Editing works [cite:10.1038/a], see also [cite:10.1126/b]."

	first := l.Rewrite(raw, groundedFixture(), 1)
	second := l.Rewrite(first.Rendered, groundedFixture(), 2)

	if second.Rendered != first.Rendered {
		t.Errorf("second pass changed output: %q vs %q", second.Rendered, first.Rendered)
	}
	if len(second.NewEntries) != 0 {
		t.Errorf("second pass recorded %d new entries, want 0", len(second.NewEntries))
	}
}

func TestRewriteKeepsUnresolvedMarkersVerbatim(t *testing.T) {
	l := NewLedger()
	raw := "This claim has no grounding [cite:10.9999/ghost] at all."

	first := l.Rewrite(raw, map[string]SourceMeta{}, 0)
	if first.Rendered != raw {
		t.Errorf("Rendered = %q, want input unchanged", first.Rendered)
	}
	if len(first.UnknownSources) != 1 || first.UnknownSources[0] != "10.9999/ghost" {
		t.Errorf("UnknownSources = %v, want [10.9999/ghost]", first.UnknownSources)
	}
	if l.Len() != 0 {
		t.Errorf("ledger recorded %d entries for an unresolved marker", l.Len())
	}

	second := l.Rewrite(first.Rendered, map[string]SourceMeta{}, 1)
	if second.Rendered != raw {
		t.Errorf("second pass changed output: %q", second.Rendered)
	}
}

func TestRewriteAcrossTurnsKeepsNumbers(t *testing.T) {
	l := NewLedger()

	turn1 := l.Rewrite("A result [cite:10.1038/a].", groundedFixture(), 1)
	turn2 := l.Rewrite("More from [cite:10.1126/b] and again [cite:10.1038/a].", groundedFixture(), 2)

	if turn1.Rendered != "A result [1]." {
		t.Errorf("turn1 = %q", turn1.Rendered)
	}
	if turn2.Rendered != "More from [2] and again [1]." {
		t.Errorf("turn2 = %q", turn2.Rendered)
	}
	if b := l.Entries()[1]; b.FirstCitedTurn != 2 {
		t.Errorf("FirstCitedTurn of second entry = %d, want 2", b.FirstCitedTurn)
	}
}
