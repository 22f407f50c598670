package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hr-workforce-api/internal/domain"
)

type captureSink struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
	block  chan struct{}
}

func (s *captureSink) Write(_ context.Context, ev domain.ActivityEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) all() []domain.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActivityEvent(nil), s.events...)
}

func TestRecord_EventsReachSink(t *testing.T) {
	sink := &captureSink{}
	rec := NewAsyncRecorder(sink, 8)

	rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogin})
	rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogout})
	rec.Close()

	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, domain.ActionLogin, got[0].Action)
	assert.Equal(t, domain.ActionLogout, got[1].Action)
}

func TestRecord_StampsMissingTimestamp(t *testing.T) {
	sink := &captureSink{}
	rec := NewAsyncRecorder(sink, 8)

	rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogin})
	rec.Close()

	got := sink.all()
	require.Len(t, got, 1)
	assert.False(t, got[0].At.IsZero())
}

func TestRecord_NeverBlocksWhenBufferFull(t *testing.T) {
	sink := &captureSink{block: make(chan struct{})}
	rec := NewAsyncRecorder(sink, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Far more events than the buffer holds; the overflow is dropped.
		for i := 0; i < 50; i++ {
			rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogin})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(sink.block)
	rec.Close()
}

func TestRecord_AfterCloseIsSafeAndDrops(t *testing.T) {
	sink := &captureSink{}
	rec := NewAsyncRecorder(sink, 8)

	rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogin})
	rec.Close()

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), domain.ActivityEvent{UserID: "usr_1", Action: domain.ActionLogout})
	})
	// Only the pre-close event reached the sink.
	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.ActionLogin, got[0].Action)
}

func TestClose_IsIdempotent(t *testing.T) {
	rec := NewAsyncRecorder(&captureSink{}, 8)
	rec.Close()
	rec.Close()
}

func TestLogSink_Writes(t *testing.T) {
	err := LogSink{}.Write(context.Background(), domain.ActivityEvent{
		UserID: "usr_1",
		Action: domain.ActionLogin,
		At:     time.Now(),
	})
	assert.NoError(t, err)
}
