package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestFormatSSE(t *testing.T) {
	got := string(FormatSSE(models.SSEEvent{
		Type:      models.EventProgress,
		Stage:     models.StageAnalyzingPrompts,
		Data:      models.ProgressData{Progress: 42, Message: "Analyzed 5 of 12"},
		Timestamp: fixedTime,
	}))

	want := "event: progress\n" +
		`data: {"type":"progress","stage":"analyzing-prompts","data":{"progress":42,"message":"Analyzed 5 of 12"},"timestamp":"2026-03-01T12:00:00Z"}` +
		"\n\n"
	if got != want {
		t.Errorf("FormatSSE() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatSSE_UnencodablePayload(t *testing.T) {
	got := string(FormatSSE(models.SSEEvent{
		Type:      models.EventPartialResult,
		Data:      map[string]any{"bad": make(chan int)},
		Timestamp: fixedTime,
	}))

	if !strings.HasPrefix(got, "event: error\n") {
		t.Errorf("FormatSSE() = %q, want an error event", got)
	}
	if !strings.Contains(got, "failed to encode event") {
		t.Errorf("FormatSSE() = %q, want encode failure message", got)
	}
}

func TestNewWriter_Headers(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, err := NewWriter(rec); err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if rec.Code != http.StatusOK || !rec.Flushed {
		t.Errorf("code = %d flushed = %v, want 200 and flushed", rec.Code, rec.Flushed)
	}
}

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	w := noFlushWriter{ResponseWriter: httptest.NewRecorder()}
	if _, err := NewWriter(w); !errors.Is(err, ErrStreamingUnsupported) {
		t.Errorf("NewWriter() error = %v, want ErrStreamingUnsupported", err)
	}
}

func TestWriter_SendAndHeartbeat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	if err := w.Send(context.Background(), models.SSEEvent{Type: models.EventStart, Timestamp: fixedTime}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := w.Heartbeat(); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: start\ndata: ") {
		t.Errorf("body = %q, want start event first", body)
	}
	if !strings.HasSuffix(body, ": heartbeat\n\n") {
		t.Errorf("body = %q, want trailing heartbeat", body)
	}
}

func TestWriter_SendCancelled(t *testing.T) {
	w, _ := NewWriter(httptest.NewRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Send(ctx, models.SSEEvent{Type: models.EventStart}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

// failingWriter fails every write after the headers are committed.
type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriter_WriteError(t *testing.T) {
	w, err := NewWriter(failingWriter{httptest.NewRecorder()})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.Send(context.Background(), models.SSEEvent{Type: models.EventStart}); err == nil {
		t.Error("Send() error = nil, want write failure")
	}
}

// lockedRecorder guards the recorder body for concurrent KeepAlive writes.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (l *lockedRecorder) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ResponseRecorder.Write(p)
}

func (l *lockedRecorder) body() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Body.String()
}

func TestWriter_KeepAlive(t *testing.T) {
	rec := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.KeepAlive(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(rec.body(), ": heartbeat") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !strings.Contains(rec.body(), ": heartbeat\n\n") {
		t.Error("KeepAlive() wrote no heartbeat")
	}
}
