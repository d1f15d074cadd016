package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/metrics"
)

// Writer frames Events onto an underlying writer in Anthropic's SSE shape:
// "event: <name>\ndata: <json>\n\n", flushing after every event so a slow
// client applies backpressure all the way to the upstream chunk read.
type Writer struct {
	w       *bufio.Writer
	flusher interface{ Flush() }
}

// Flusher is satisfied by http.ResponseWriter.
type Flusher interface {
	Flush()
}

// NewWriter wraps w. flusher may be nil, in which case Write simply doesn't
// flush (useful in tests that only care about the bytes produced).
func NewWriter(w io.Writer, flusher Flusher) *Writer {
	sw := &Writer{w: bufio.NewWriter(w)}
	if flusher != nil {
		sw.flusher = flusher
	}
	return sw
}

// Write frames and emits one event, flushing immediately after.
func (sw *Writer) Write(ev Event) error {
	name := ev.Name
	if ev.Raw != nil {
		if name == "" {
			name = "done"
		}
		if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", ev.Raw); err != nil {
			return err
		}
	} else {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("marshaling sse event %q: %w", ev.Name, err)
		}
		if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", ev.Name, payload); err != nil {
			return err
		}
	}
	metrics.StreamEventsTotal.WithLabelValues(name).Inc()
	if err := sw.w.Flush(); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// WriteAll writes each event in order, stopping at the first error.
func (sw *Writer) WriteAll(events []Event) error {
	for _, ev := range events {
		if err := sw.Write(ev); err != nil {
			return err
		}
	}
	return nil
}
