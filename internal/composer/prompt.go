package composer

import (
	"strings"
)

const defaultMaxContextTokens = 1500

// Cue marks where generation begins. Backends that echo the prompt are
// cleaned by cutting at its last occurrence.
const Cue = "SQL:"

const header = `You are an expert SQL generator. Use only the schema and context below to produce a valid SQLite query.
Output exactly one SQL statement. No explanation.

CONTEXT:
`

// Composer assembles the text-to-SQL prompt from retrieved context entries
// and the user question. Output depends only on its inputs.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (1500) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Build joins the context entries with newlines under the instruction
// header and appends the question followed by the cue. Entries are taken in
// the given (relevance) order; an entry that would exceed the token budget
// is skipped while smaller later entries may still fit.
func (c *Composer) Build(context []string, question string) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString(strings.Join(c.selectEntries(context), "\n"))
	sb.WriteString("\n\nUSER QUESTION:\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\n")
	sb.WriteString(Cue)
	sb.WriteString("\n")
	return sb.String()
}

// Selected reports which context entries Build would include.
func (c *Composer) Selected(context []string) []string {
	return c.selectEntries(context)
}

func (c *Composer) selectEntries(context []string) []string {
	remaining := c.MaxContextTokens
	var selected []string
	for _, entry := range context {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		selected = append(selected, entry)
		remaining -= tokens
	}
	return selected
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
