package sync

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// EventType discriminates progress events on the wire.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventCanceled EventType = "canceled"
	EventError    EventType = "error"
)

// ProgressEvent is one line of a sync run's progress stream. Every
// stream opens with exactly one start event, which carries RunID and
// Entity but no total: the source has not been listed yet. Progress
// events carry the running counters, with Scanned and Total set once
// the listing is known. Exactly one terminal event (complete, canceled
// or error) ends every stream.
type ProgressEvent struct {
	Type             EventType    `json:"type"`
	RunID            string       `json:"runId,omitempty"`
	Entity           string       `json:"entity,omitempty"`
	Total            int          `json:"total,omitempty"`
	Scanned          int          `json:"scanned,omitempty"`
	Processed        int          `json:"processed"`
	Created          int          `json:"created"`
	Skipped          int          `json:"skipped"`
	Failed           int          `json:"failed"`
	RateLimitRetries int          `json:"rateLimitRetries,omitempty"`
	DurationMs       int64        `json:"durationMs,omitempty"`
	Message          string       `json:"message,omitempty"`
	Errors           []BatchError `json:"errors,omitempty"`
}

// Terminal reports whether the event ends a stream.
func (e ProgressEvent) Terminal() bool {
	switch e.Type {
	case EventComplete, EventCanceled, EventError:
		return true
	}
	return false
}

// EventSink receives progress events as a run advances. Emit must be
// safe for use from the goroutine running the sync.
type EventSink interface {
	Emit(event ProgressEvent)
}

type flusher interface {
	Flush()
}

// NDJSONSink writes each event as one JSON line. When the writer also
// implements Flush (http.ResponseWriter behind chi does), every line is
// flushed immediately so clients see progress in real time.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
	f  flusher
}

// NewNDJSONSink wraps a writer as an NDJSON event sink.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	sink := &NDJSONSink{w: w}
	if f, ok := w.(flusher); ok {
		sink.f = f
	}
	return sink
}

func (s *NDJSONSink) Emit(event ProgressEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// client disconnects surface as write errors; the run itself is
	// stopped by context cancellation, not by the sink
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return
	}
	if s.f != nil {
		s.f.Flush()
	}
}

// CaptureSink records events in memory, for tests and for the one-shot
// CLI summary.
type CaptureSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (s *CaptureSink) Emit(event ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of everything emitted so far.
func (s *CaptureSink) Events() []ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressEvent(nil), s.events...)
}

// LogSink mirrors terminal events into the structured log so runs
// driven by the poller leave a trace.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Emit(event ProgressEvent) {
	if s.Logger == nil || !event.Terminal() {
		return
	}
	s.Logger.Info("sync run finished",
		"type", string(event.Type),
		"entity", event.Entity,
		"runId", event.RunID,
		"processed", event.Processed,
		"created", event.Created,
		"skipped", event.Skipped,
		"failed", event.Failed,
		"durationMs", event.DurationMs,
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Emit(event ProgressEvent) {
	for _, sink := range m {
		sink.Emit(event)
	}
}
