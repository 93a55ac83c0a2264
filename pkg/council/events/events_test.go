package events

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPublishSubscribeLocal(t *testing.T) {
	bus := NewBus(nil)
	runID := NewRunID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, runID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := bus.Publish(ctx, runID, Envelope{Type: TypeStage1Start}); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	select {
	case msg := <-msgs:
		env, err := DecodeEnvelope(msg.Payload)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if env.Type != TypeStage1Start {
			t.Fatalf("expected stage1_start, got %s", env.Type)
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestLineFormatsAsSSERecord(t *testing.T) {
	line, err := Line(Envelope{Type: TypeComplete})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := string(line)
	if !strings.HasPrefix(s, "data: ") {
		t.Fatalf("expected data: prefix, got %q", s)
	}
	if !strings.HasSuffix(s, "\n\n") {
		t.Fatalf("expected trailing blank line, got %q", s)
	}
	if !strings.Contains(s, `"type":"complete"`) {
		t.Fatalf("expected type field in payload, got %q", s)
	}
}

func TestRunStreamEmitDoesNotBlockOnNoSubscriber(t *testing.T) {
	bus := NewBus(nil)
	stream := NewRunStream(bus, NewRunID())

	done := make(chan struct{})
	go func() {
		stream.Emit(context.Background(), TypeStage1Start, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with no subscriber")
	}
}
