package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hr-workforce-api/internal/domain"
)

// Recorder receives audit events from the auth flows. Recording is
// best-effort: it never blocks the parent flow and its failures are logged,
// not propagated.
type Recorder interface {
	Record(ctx context.Context, ev domain.ActivityEvent)
}

// Sink is the terminal destination for audit events, e.g. a log writer or
// an external activity service client.
type Sink interface {
	Write(ctx context.Context, ev domain.ActivityEvent) error
}

// AsyncRecorder buffers events on a channel drained by one background
// goroutine. When the buffer is full the event is dropped with a warning
// rather than stalling a login.
type AsyncRecorder struct {
	events chan domain.ActivityEvent
	done   chan struct{}
	sink   Sink
	wg     sync.WaitGroup
	once   sync.Once
}

func NewAsyncRecorder(sink Sink, buffer int) *AsyncRecorder {
	if buffer < 1 {
		buffer = 256
	}
	r := &AsyncRecorder{
		events: make(chan domain.ActivityEvent, buffer),
		done:   make(chan struct{}),
		sink:   sink,
	}
	r.wg.Add(1)
	go r.drain()
	return r
}

// Record is safe to call from any goroutine at any time, including after
// Close; straggler events after shutdown are dropped, not panicked on.
func (r *AsyncRecorder) Record(_ context.Context, ev domain.ActivityEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case <-r.done:
		slog.Warn("activity recorder closed, dropping event", "action", ev.Action, "user_id", ev.UserID)
		return
	default:
	}
	select {
	case r.events <- ev:
	default:
		slog.Warn("activity buffer full, dropping event", "action", ev.Action, "user_id", ev.UserID)
	}
}

// Close stops the drain goroutine after flushing buffered events.
func (r *AsyncRecorder) Close() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *AsyncRecorder) drain() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.events:
			r.write(ev)
		case <-r.done:
			for {
				select {
				case ev := <-r.events:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *AsyncRecorder) write(ev domain.ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.Write(ctx, ev); err != nil {
		slog.Warn("failed to record activity", "action", ev.Action, "user_id", ev.UserID, "err", err)
	}
}

// LogSink writes audit events to the process log. Durable audit persistence
// lives in a separate service; this core only emits events.
type LogSink struct{}

func (LogSink) Write(_ context.Context, ev domain.ActivityEvent) error {
	slog.Info("activity",
		"user_id", ev.UserID,
		"action", ev.Action,
		"description", ev.Description,
		"ip", ev.IP,
		"at", ev.At.Format(time.RFC3339),
	)
	return nil
}
