// Package sse writes analysis progress as Server-Sent Events.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// DefaultHeartbeat is the interval between keepalive comments.
const DefaultHeartbeat = 15 * time.Second

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// FormatSSE renders an event as an SSE frame: "event: <type>\ndata: <json>\n\n".
// An event whose payload cannot be encoded is rendered as an error event.
func FormatSSE(event models.SSEEvent) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		data, _ = json.Marshal(models.SSEEvent{
			Type:      models.EventError,
			Stage:     event.Stage,
			Data:      models.ErrorData{Message: "failed to encode event: " + err.Error()},
			Timestamp: event.Timestamp,
		})
		event.Type = models.EventError
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(event.Type) + 16)
	fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", event.Type, data)
	return buf.Bytes()
}

// Writer streams events to an HTTP response. It is safe for concurrent use
// and implements service.EventSink.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the event-stream headers, clears the write deadline and
// commits the response.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// Analyses outlive any server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes one event and flushes it. A write error means the client is gone.
func (s *Writer) Send(ctx context.Context, event models.SSEEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(FormatSSE(event))
}

// Heartbeat writes a comment line that EventSource clients ignore.
func (s *Writer) Heartbeat() error {
	return s.write([]byte(": heartbeat\n\n"))
}

// KeepAlive sends a heartbeat every interval until ctx is done or a write fails.
func (s *Writer) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (s *Writer) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
