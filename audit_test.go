package bmauth

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	d.Emit(AuditEvent{EventType: EventLoginSuccess, UserID: 1, Success: true})
	d.Emit(AuditEvent{EventType: EventLogout, UserID: 1, Success: true})
	d.Close()

	var got []string
	for {
		select {
		case ev := <-sink.Events():
			got = append(got, ev.EventType)
			continue
		default:
		}
		break
	}
	if len(got) != 2 || got[0] != EventLoginSuccess || got[1] != EventLogout {
		t.Fatalf("expected both events drained in order, got %v", got)
	}

	// Emit after Close is a silent no-op.
	d.Emit(AuditEvent{EventType: EventLogout})
}

func TestAuditDispatcherDisabled(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled audit must not start a dispatcher")
	}
	// All operations are safe on the nil dispatcher.
	d.Emit(AuditEvent{EventType: EventLogout})
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
	d.Close()
}

func TestAuditDispatcherCountsDrops(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, sink)
	defer d.Close()
	defer close(block)

	// One event occupies the sink, one fills the buffer, the rest drop.
	for i := 0; i < 8; i++ {
		d.Emit(AuditEvent{EventType: EventRefreshSuccess})
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected drops on a full buffer")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(ctx context.Context, event AuditEvent) {
	<-s.release
}

func TestClientEmitsAuditEvents(t *testing.T) {
	f := newFakeAPI(t)
	f.addUser("alice", "pw", "3", 0)
	f.addUser("root", "pw", "1", 0)

	var buf bytes.Buffer
	c, err := New().
		WithBaseURL(f.srv.URL).
		WithAuditSink(NewJSONWriterSink(&buf)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Login(ctx, Credential{UserName: "root", Password: "pw"}, TargetUser); err == nil {
		t.Fatal("expected admin rejection")
	}
	if _, err := c.Login(ctx, Credential{UserName: "alice", Password: "pw"}, TargetUser); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	c.Close()

	out := buf.String()
	for _, want := range []string{EventLoginRejected, EventLoginSuccess, EventLogout} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in audit output, got:\n%s", want, out)
		}
	}
}
