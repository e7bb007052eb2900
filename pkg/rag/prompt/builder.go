package prompt

import (
	"fmt"
	"strings"

	"paperchat-be/pkg/store"
)

// GroundedBuilder assembles the generation prompt from retrieved passages.
// Every passage is tagged with its stable source id so the model can emit
// verifiable citation markers instead of inventing numbers.
type GroundedBuilder struct {
	query      string
	candidates []store.Candidate
}

func NewGroundedBuilder(query string, candidates []store.Candidate) *GroundedBuilder {
	return &GroundedBuilder{
		query:      query,
		candidates: candidates,
	}
}

func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	b.writeSources(&prompt)
	b.writeTask(&prompt)
	b.writeCitationRules(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *GroundedBuilder) writeSources(prompt *strings.Builder) {
	if len(b.candidates) == 0 {
		return
	}

	prompt.WriteString("<sources>\n")
	for _, c := range b.candidates {
		prompt.WriteString(fmt.Sprintf("<passage source_id=%q title=%q journal=%q>\n", c.SourceID, c.Title, c.Journal))
		prompt.WriteString(c.Text)
		prompt.WriteString("\n</passage>\n")
	}
	prompt.WriteString("</sources>\n\n")
}

func (b *GroundedBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a research assistant answering questions about scientific literature.\n")
	prompt.WriteString("Answer strictly from the passages above. If they do not contain what is being asked, say so honestly instead of speculating.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *GroundedBuilder) writeCitationRules(prompt *strings.Builder) {
	prompt.WriteString("<citation_rules>\n")
	prompt.WriteString("When a claim is supported by a passage, cite it by writing [cite:SOURCE_ID] immediately after the claim, using the exact source_id attribute of that passage.\n")
	prompt.WriteString("Never invent source ids and never write bare numeric citations like [1]; numbering is handled downstream.\n")
	prompt.WriteString("Cite each supporting passage at most once per claim.\n")
	prompt.WriteString("</citation_rules>\n\n")
}

func (b *GroundedBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your complete, cited response:")
}
