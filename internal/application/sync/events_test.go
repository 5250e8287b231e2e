package sync

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCountingWriter struct {
	bytes.Buffer
	flushes int
}

func (w *flushCountingWriter) Flush() { w.flushes++ }

func TestNDJSONSinkWritesOneLinePerEvent(t *testing.T) {
	w := &flushCountingWriter{}
	sink := NewNDJSONSink(w)

	sink.Emit(ProgressEvent{Type: EventStart, RunID: "run-1", Entity: EntityProducts, Total: 3})
	sink.Emit(ProgressEvent{Type: EventProgress, Processed: 2, Created: 1, Skipped: 1})
	sink.Emit(ProgressEvent{Type: EventComplete, Processed: 3, Created: 2, Skipped: 1, DurationMs: 120})

	lines := strings.Split(strings.TrimRight(w.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, 3, w.flushes, "every event is flushed immediately")

	var first ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, EventStart, first.Type)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, 3, first.Total)

	var last ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.True(t, last.Terminal())
}

func TestNDJSONSinkWithoutFlusher(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONSink(bufio.NewWriter(&buf))

	// must not panic even though bufio.Writer's Flush returns an error
	// and therefore does not satisfy the flusher interface
	sink.Emit(ProgressEvent{Type: EventComplete})
}

func TestLogSinkIgnoresNonTerminalEvents(t *testing.T) {
	sink := &LogSink{Logger: testLogger()}
	sink.Emit(ProgressEvent{Type: EventProgress})
	sink.Emit(ProgressEvent{Type: EventComplete})
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &CaptureSink{}
	b := &CaptureSink{}
	MultiSink{a, b}.Emit(ProgressEvent{Type: EventStart})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
