// Package transcript accumulates a lossless, human-readable log of every
// message an agent engine emitted during a session.
package transcript

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/akulkarni/0perator-eval/internal/models"
)

const separator = "================================================================================"

// Recorder renders messages into ordered textual blocks. Append-only;
// insertion order is arrival order.
type Recorder struct {
	blocks []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	return len(r.blocks)
}

// Export returns the concatenation of all recorded blocks in arrival order.
// Safe to call at any time; returns "" when nothing was recorded.
func (r *Recorder) Export() string {
	return strings.Join(r.blocks, "")
}

// Record renders one message as a block: a header with the ordinal and kind,
// then one line per non-empty field of the raw payload. A field that cannot
// be rendered is noted inline; a single bad field never loses the entry.
func (r *Recorder) Record(ordinal int, msg models.Message) {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Message %d: %s ===\n", ordinal, msg.Kind)

	for _, name := range sortedFieldNames(msg.Raw) {
		renderField(&b, name, msg.Raw[name])
	}

	b.WriteString("\n" + separator + "\n\n")
	r.blocks = append(r.blocks, b.String())
}

func sortedFieldNames(raw map[string]any) []string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// renderField writes one field. Scalars print inline; sequences print their
// length followed by one indented, unabridged line per element; mappings
// print as an indented structured dump.
func renderField(b *strings.Builder, name string, value any) {
	switch v := value.(type) {
	case nil:
		return

	case string:
		if v == "" {
			return
		}
		fmt.Fprintf(b, "%s: %s\n", name, v)

	case bool, int, int64, float64, json.Number:
		fmt.Fprintf(b, "%s: %v\n", name, v)

	case []any:
		fmt.Fprintf(b, "%s: [%d items]\n", name, len(v))
		for i, item := range v {
			fmt.Fprintf(b, "  [%d]: %s\n", i, renderValue(item))
		}

	case map[string]any:
		dump, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(b, "%s: <error accessing: %v>\n", name, err)
			return
		}
		fmt.Fprintf(b, "%s:\n%s\n", name, dump)

	default:
		fmt.Fprintf(b, "%s: %s\n", name, renderValue(v))
	}
}

// renderValue produces the full textual form of an arbitrary value, falling
// back to an inline error note when it cannot be serialized.
func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool, int, int64, float64, json.Number:
		return fmt.Sprintf("%v", t)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<error accessing: %v>", err)
	}
	return string(data)
}
