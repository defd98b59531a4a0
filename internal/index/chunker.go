package index

import (
	"fmt"
	"strings"
)

// SplitMode selects how a document is divided into chunks.
type SplitMode string

const (
	// SplitParagraph cuts at every blank line.
	SplitParagraph SplitMode = "paragraph"
	// SplitTable starts a new chunk at every line beginning with "Table",
	// keeping a table description and its notes together.
	SplitTable SplitMode = "table"
)

// ParseSplitMode validates a mode name from the command line.
func ParseSplitMode(s string) (SplitMode, error) {
	switch m := SplitMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SplitParagraph, SplitTable:
		return m, nil
	case "":
		return SplitParagraph, nil
	default:
		return "", fmt.Errorf("unknown split mode %q (want %s or %s)", s, SplitParagraph, SplitTable)
	}
}

// Split divides text into trimmed, non-empty chunks in document order.
func Split(text string, mode SplitMode) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var parts []string
	switch mode {
	case SplitTable:
		parts = splitTables(text)
	default:
		parts = strings.Split(text, "\n\n")
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

func splitTables(text string) []string {
	var (
		parts   []string
		current strings.Builder
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "Table") && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
