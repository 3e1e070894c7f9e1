package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	assert.Nil(t, d)

	d.Emit(context.Background(), Event{EventType: "e"})
	d.Close()
	assert.Zero(t, d.Dropped())
	assert.Zero(t, d.Delivered())
}

func TestBufferFullDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.NotZero(t, d.Dropped())
}

func TestBufferFullBlockingWaitsForSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestBlockingEmitGivesUpWithContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "e3"})
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestCloseFlushesAndIsIdempotent(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})

	assert.Equal(t, int64(10), sink.count.Load())
	assert.Equal(t, uint64(10), d.Delivered())
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "login_success",
		Email:     "alice@example.com",
		IP:        "127.0.0.1",
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var got Event
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "login_success", got.EventType)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Contains(t, line, `"email":"alice@example.com"`)
}

func TestLoggerSinkWritesSortedMetadata(t *testing.T) {
	var buf syncBuffer
	sink := NewLoggerSink(log.New(&buf, "", 0))
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		Email:     "bob@example.com",
		Error:     "incorrect_credentials",
		Metadata:  map[string]string{"reason": "password_mismatch", "attempt": "2"},
	})

	assert.Equal(t,
		"audit event=login_failure success=false email=bob@example.com error=incorrect_credentials attempt=2 reason=password_mismatch\n",
		buf.String())
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: "e"})

	assert.Equal(t, int64(1), a.count.Load())
	assert.Equal(t, int64(1), b.count.Load())
}

func TestChannelSinkDropsOnCanceledContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{EventType: "second"})

	ev := <-sink.Events()
	assert.Equal(t, "first", ev.EventType)
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event %q", ev.EventType)
	default:
	}
}
