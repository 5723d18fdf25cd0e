package tenauth

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversToChannelSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: auditTokenIssued,
		SubjectID: "u-1",
		TenantID:  "t-1",
		Success:   true,
	})

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditTokenIssued || ev.TenantID != "t-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit must return nil dispatcher")
	}

	// nil dispatcher methods are no-ops
	d.Emit(context.Background(), AuditEvent{EventType: auditTokenRejected})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// An unread ChannelSink with a full dispatcher buffer forces drops.
	sink := NewChannelSink(1)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditAuthzAllowed})
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected dropped events")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		EventType: auditAuthzForbidden,
		SubjectID: "u-2",
		TenantID:  "t-9",
		Route:     "/api/billing",
	})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("sink output is not JSON: %v", err)
	}
	if decoded["event_type"] != auditAuthzForbidden || decoded["route"] != "/api/billing" {
		t.Fatalf("unexpected payload: %v", decoded)
	}
}
