package service

import (
	"context"
	"time"

	"github.com/jmylchreest/autoreach-api/internal/models"
)

// EventSink receives progress events from a running analysis. A non-nil
// error from Send aborts the run.
type EventSink interface {
	Send(ctx context.Context, event models.SSEEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event models.SSEEvent) error

// Send calls f.
func (f EventSinkFunc) Send(ctx context.Context, event models.SSEEvent) error {
	return f(ctx, event)
}

// DiscardSink drops every event.
var DiscardSink EventSink = EventSinkFunc(func(context.Context, models.SSEEvent) error { return nil })

// emitter stamps and forwards events to a sink.
type emitter struct {
	sink EventSink
	now  func() time.Time
}

func newEmitter(sink EventSink, now func() time.Time) *emitter {
	if sink == nil {
		sink = DiscardSink
	}
	if now == nil {
		now = time.Now
	}
	return &emitter{sink: sink, now: now}
}

func (e *emitter) emit(ctx context.Context, typ models.EventType, stage models.Stage, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.sink.Send(ctx, models.SSEEvent{
		Type:      typ,
		Stage:     stage,
		Data:      data,
		Timestamp: e.now().UTC(),
	})
}

func (e *emitter) stage(ctx context.Context, stage models.Stage, progress int, message string) error {
	return e.emit(ctx, models.EventStage, stage, models.ProgressData{
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}
