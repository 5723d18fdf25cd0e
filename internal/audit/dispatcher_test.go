package audit

import (
	"context"
	"testing"
	"time"
)

func TestCloseDrainsQueuedEvents(t *testing.T) {
	const n = 16

	sink := NewChannelSink(n)
	d := NewDispatcher(Config{Enabled: true, BufferSize: n, DropIfFull: true}, sink)

	for i := 0; i < n; i++ {
		d.Emit(context.Background(), Event{EventType: "authz.allowed"})
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
			if got == n {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered %d of %d events after Close", got, n)
		}
	}
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "token.issued"})

	select {
	case ev := <-sink.Events():
		t.Fatalf("event delivered after Close: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if d.Dropped() != 0 {
		t.Fatalf("post-Close emit counted as drop: %d", d.Dropped())
	}

	// Close is idempotent.
	d.Close()
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher

	d.Emit(context.Background(), Event{EventType: "token.rejected"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}
