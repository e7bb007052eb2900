package main

import (
	"fmt"

	"paperchat-be/pkg/rag/citation"
	"paperchat-be/pkg/rag/prompt"
	"paperchat-be/pkg/store"

	"github.com/fatih/color"
)

// Offline walk through the citation pipeline: feed raw model output with
// stable-id markers through the ledger across several turns and print the
// rendered text. Useful for eyeballing numbering stability without a
// database or model behind it.

var (
	header  = color.New(color.FgCyan, color.Bold)
	userC   = color.New(color.FgGreen)
	rawC    = color.New(color.FgYellow)
	renderC = color.New(color.FgWhite, color.Bold)
	warnC   = color.New(color.FgRed)
)

type turn struct {
	query string
	raw   string
}

func main() {
	header.Println("=== Citation Ledger Simulation ===")

	grounded := map[string]citation.SourceMeta{
		"10.1038/nphoton.2010.237": {Title: "Plasmonics for extreme light concentration", Journal: "Nature Photonics"},
		"10.1126/science.1114849":  {Title: "Sub-diffraction optical imaging", Journal: "Science"},
		"10.1103/PhysRevLett.96.113002": {Title: "Single molecule fluorescence enhancement", Journal: "Phys. Rev. Lett."},
	}

	turns := []turn{
		{
			query: "How do plasmonic structures concentrate light?",
			raw: "Metallic nanostructures support surface plasmons that confine light below " +
				"the diffraction limit [cite:10.1038/nphoton.2010.237]. This enables imaging " +
				"beyond classical resolution [cite:10.1126/science.1114849].",
		},
		{
			query: "Does that help single-molecule detection?",
			raw: "Yes, field concentration boosts fluorescence " +
				"[cite:10.1103/PhysRevLett.96.113002] [cite:10.1103/PhysRevLett.96.113002], " +
				"building on the confinement effect [cite:10.1038/nphoton.2010.237]. Some " +
				"claim tenfold gains [cite:10.9999/not-grounded].",
		},
	}

	ledger := citation.NewLedger()
	for i, tn := range turns {
		fmt.Println()
		header.Printf("--- Turn %d ---\n", i)
		userC.Printf("USER: %s\n", tn.query)

		candidates := candidatesFrom(grounded)
		built := prompt.NewGroundedBuilder(tn.query, candidates).Build()
		fmt.Printf("prompt: %d bytes, %d sources\n", len(built), len(candidates))

		rawC.Printf("RAW:      %s\n", tn.raw)
		result := ledger.Rewrite(tn.raw, grounded, i)
		renderC.Printf("RENDERED: %s\n", result.Rendered)

		for _, sourceID := range result.UnknownSources {
			warnC.Printf("  unresolved marker left in text: %s\n", sourceID)
		}
		for _, e := range result.NewEntries {
			fmt.Printf("  new citation [%d] %s (%s), first cited turn %d\n",
				e.Position+1, e.Title, e.Journal, e.FirstCitedTurn)
		}
	}

	fmt.Println()
	header.Println("--- Final ledger ---")
	for i, e := range ledger.Entries() {
		fmt.Printf("[%d] %s - %s\n", i+1, e.SourceID, e.Title)
	}
}

func candidatesFrom(grounded map[string]citation.SourceMeta) []store.Candidate {
	out := make([]store.Candidate, 0, len(grounded))
	for sourceID, meta := range grounded {
		out = append(out, store.Candidate{
			SourceID: sourceID,
			Title:    meta.Title,
			Journal:  meta.Journal,
			Text:     "passage text for " + meta.Title,
		})
	}
	return out
}
