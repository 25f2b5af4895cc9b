package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akulkarni/0perator-eval/internal/models"
)

func msgWithRaw(kind models.MessageKind, raw map[string]any) models.Message {
	return models.Message{Kind: kind, Raw: raw}
}

func TestExportEmpty(t *testing.T) {
	rec := NewRecorder()
	require.Equal(t, "", rec.Export())
	require.Equal(t, 0, rec.Len())
}

func TestRecordOrdering(t *testing.T) {
	rec := NewRecorder()
	for i := 1; i <= 5; i++ {
		rec.Record(i, msgWithRaw(models.KindAssistant, map[string]any{"seq": float64(i)}))
	}

	require.Equal(t, 5, rec.Len())

	out := rec.Export()
	last := -1
	for i := 1; i <= 5; i++ {
		pos := strings.Index(out, fmt.Sprintf("=== Message %d: assistant ===", i))
		require.Greater(t, pos, last, "entry %d out of order", i)
		last = pos
	}
}

func TestRecordScalarFields(t *testing.T) {
	rec := NewRecorder()
	rec.Record(1, msgWithRaw(models.KindResult, map[string]any{
		"result":    "CREATE TABLE foo(id INT);",
		"is_error":  false,
		"num_turns": float64(3),
		"empty":     "",
		"missing":   nil,
	}))

	out := rec.Export()
	require.Contains(t, out, "=== Message 1: result ===\n")
	require.Contains(t, out, "result: CREATE TABLE foo(id INT);\n")
	require.Contains(t, out, "is_error: false\n")
	require.Contains(t, out, "num_turns: 3\n")
	require.NotContains(t, out, "empty:")
	require.NotContains(t, out, "missing:")
	require.Contains(t, out, "\n"+separator+"\n\n")
}

func TestRecordSequenceField(t *testing.T) {
	rec := NewRecorder()
	rec.Record(1, msgWithRaw(models.KindUnknown, map[string]any{
		"tools": []any{"read_file", map[string]any{"name": "design_schema"}},
	}))

	out := rec.Export()
	require.Contains(t, out, "tools: [2 items]\n")
	require.Contains(t, out, "  [0]: read_file\n")
	require.Contains(t, out, `  [1]: {"name":"design_schema"}`)
}

func TestRecordMappingField(t *testing.T) {
	rec := NewRecorder()
	rec.Record(1, msgWithRaw(models.KindSystem, map[string]any{
		"usage": map[string]any{"input_tokens": float64(10)},
	}))

	out := rec.Export()
	require.Contains(t, out, "usage:\n{\n  \"input_tokens\": 10\n}\n")
}

func TestRecordUnrenderableFieldDoesNotAbortEntry(t *testing.T) {
	rec := NewRecorder()
	rec.Record(1, msgWithRaw(models.KindUnknown, map[string]any{
		"bad":  make(chan int),
		"good": "still here",
	}))

	out := rec.Export()
	require.Contains(t, out, "bad: <error accessing:")
	require.Contains(t, out, "good: still here\n")
	require.Equal(t, 1, rec.Len())
}

func TestFieldsRenderedInDeterministicOrder(t *testing.T) {
	raw := map[string]any{"zeta": "z", "alpha": "a", "mid": "m"}

	rec1 := NewRecorder()
	rec1.Record(1, msgWithRaw(models.KindUnknown, raw))
	rec2 := NewRecorder()
	rec2.Record(1, msgWithRaw(models.KindUnknown, raw))

	require.Equal(t, rec1.Export(), rec2.Export())

	out := rec1.Export()
	require.Less(t, strings.Index(out, "alpha: a"), strings.Index(out, "mid: m"))
	require.Less(t, strings.Index(out, "mid: m"), strings.Index(out, "zeta: z"))
}
