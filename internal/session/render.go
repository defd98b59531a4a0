package session

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/sqlrag/internal/engine"
	"github.com/kalambet/sqlrag/internal/executor"
	"github.com/kalambet/sqlrag/internal/pipeline"
	"github.com/kalambet/sqlrag/internal/sanitize"
)

// Separator closes every turn.
var Separator = strings.Repeat("-", 60)

// FailureMessage maps a turn error to the line shown to the user.
func FailureMessage(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, engine.ErrGenerationEmpty):
		return "Generation failed: model produced no output"
	case errors.Is(err, engine.ErrGenerationTimeout):
		return "Generation failed: timed out after " + timeout.String()
	case errors.Is(err, sanitize.ErrEmpty):
		return "No SQL could be extracted from the model output."
	default:
		return "Error: " + err.Error()
	}
}

func renderTurn(w io.Writer, turn pipeline.Turn, err error, timeout time.Duration) {
	var b strings.Builder
	b.WriteString("\n")
	if err != nil {
		b.WriteString(FailureMessage(err, timeout))
		b.WriteString("\n")
	} else {
		b.WriteString("Generated SQL:\n")
		b.WriteString(turn.SQL)
		b.WriteString("\n\n")
		writeResult(&b, turn.Result)
	}
	b.WriteString("\n")
	b.WriteString(Separator)
	b.WriteString("\n\n")
	writeString(w, b.String())
}

func writeResult(b *strings.Builder, res executor.Result) {
	if res.Failed() {
		b.WriteString(res.Error)
		b.WriteString("\n")
		return
	}
	b.WriteString("Results:\n")
	b.WriteString("[" + strings.Join(res.Columns, " ") + "]\n")
	if len(res.Rows) == 0 {
		b.WriteString("(no rows)\n")
		return
	}
	for _, row := range res.Rows {
		b.WriteString(FormatRow(row))
		b.WriteString("\n")
	}
}

// FormatRow renders a row as a parenthesized tuple. Strings are quoted and
// NULL is shown as NULL.
func FormatRow(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = formatValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + t + "'"
	case []byte:
		return "'" + string(t) + "'"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case time.Time:
		return "'" + t.Format(time.RFC3339) + "'"
	default:
		return fmt.Sprint(t)
	}
}
