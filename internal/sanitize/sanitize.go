// Package sanitize reduces raw model output to a single SQL statement
// terminated by exactly one semicolon.
package sanitize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmpty is returned when nothing statement-like is left after cleaning.
var ErrEmpty = errors.New("no SQL could be extracted")

// Fence is the code-fence marker models wrap answers in.
const Fence = "```"

var (
	blankLinePair = regexp.MustCompile(`\n[ \t]*\n`)
	openingFence  = regexp.MustCompile("^```[ \\t]*(?i:sqlite|sql)?[ \\t]*\\n?")
)

// Options configures the cleaning pipeline.
type Options struct {
	// Cue is the token that precedes the answer in the prompt. After stop
	// markers are applied, everything up to and including its last
	// occurrence is discarded.
	Cue string
	// StopMarkers truncate the answer at their first occurrence.
	StopMarkers []string
	// StopAtBlankLine also truncates at the first blank-line pair.
	StopAtBlankLine bool
}

// Default returns the markers used for Phi-style completions.
func Default() Options {
	return Options{
		Cue:             "SQL:",
		StopMarkers:     []string{Fence, "Answer:", "Explanation:"},
		StopAtBlankLine: true,
	}
}

// Sanitizer is a deterministic text-cleaning state machine.
type Sanitizer struct {
	opts Options
}

func New(opts Options) *Sanitizer {
	return &Sanitizer{opts: opts}
}

// Sanitize extracts one statement from raw. The result ends with exactly one
// semicolon and contains no stop marker. Semantic validity is not checked.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// A leading fence opens the answer rather than ending it.
	text = strings.TrimLeft(text, " \t\n")
	text = openingFence.ReplaceAllString(text, "")
	text = strings.TrimLeft(text, " \t\n")

	text = text[:s.stopIndex(text)]

	if s.opts.Cue != "" {
		if i := strings.LastIndex(text, s.opts.Cue); i >= 0 {
			text = text[i+len(s.opts.Cue):]
		}
	}
	text = strings.ReplaceAll(text, Fence, "")

	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}

	body := strings.TrimSpace(text)
	if body == "" {
		return "", ErrEmpty
	}
	return body + ";", nil
}

// StopSequences returns the markers a backend can honor during generation.
// The fence is excluded: a fenced answer would stop before its first token.
func (s *Sanitizer) StopSequences() []string {
	var out []string
	for _, m := range s.opts.StopMarkers {
		if m != Fence && m != "" {
			out = append(out, m)
		}
	}
	return out
}

// stopIndex returns the offset of the earliest stop marker, or len(text).
func (s *Sanitizer) stopIndex(text string) int {
	cut := len(text)
	for _, m := range s.opts.StopMarkers {
		if m == "" {
			continue
		}
		if i := strings.Index(text, m); i >= 0 && i < cut {
			cut = i
		}
	}
	if s.opts.StopAtBlankLine {
		if loc := blankLinePair.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return cut
}
