package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/voicedesk/internal/aibackend"
	"github.com/yoockh/voicedesk/internal/telephony"
)

type scriptedTelephony struct {
	fakeTelSink
	events chan telephony.Event
}

func (s *scriptedTelephony) ReadEvent() (telephony.Event, error) {
	ev, ok := <-s.events
	if !ok {
		return nil, errors.New("stream closed")
	}
	return ev, nil
}

func (s *scriptedTelephony) Close() error { return nil }

type scriptedAI struct {
	fakeAISink
	events chan aibackend.Event
}

func (s *scriptedAI) Events() <-chan aibackend.Event { return s.events }
func (s *scriptedAI) Close() error                   { return nil }

type trackingControl struct {
	mu        sync.Mutex
	transfers []string
	done      chan struct{}
}

func (c *trackingControl) Transfer(_ context.Context, callSID, _ string) error {
	c.mu.Lock()
	c.transfers = append(c.transfers, callSID)
	c.mu.Unlock()
	close(c.done)
	return nil
}

func (c *trackingControl) FindActiveCallSID(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

type captureFinalizer struct {
	result CallResult
	done   chan struct{}
}

func (f *captureFinalizer) Finalize(_ context.Context, result CallResult) {
	f.result = result
	close(f.done)
}

// Full session pass: caller asks for a human, exactly one acknowledgement and
// one transfer come out, and the closing pipeline sees the forwarded flag.
func TestSessionExplicitRequestTransfersOnce(t *testing.T) {
	tel := &scriptedTelephony{events: make(chan telephony.Event, 8)}
	ai := &scriptedAI{events: make(chan aibackend.Event, 8)}
	control := &trackingControl{done: make(chan struct{})}
	finalizer := &captureFinalizer{done: make(chan struct{})}
	registry := NewAttemptRegistry()

	cfg := DefaultForwardingConfig()
	cfg.TransferNumber = "+15550100"

	s := NewSession(Deps{
		Telephony:  tel,
		DialAI:     func(context.Context) (AIChannel, error) { return ai, nil },
		Control:    control,
		Registry:   registry,
		Finalizer:  finalizer,
		Forwarding: cfg,
		Thresholds: RealtimeThresholds,
		Log:        testLog(),
	})
	// No artificial pauses in tests.
	s.orchestrator.grace = 0
	s.orchestrator.pause = 0

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(context.Background()) }()

	tel.events <- telephony.StartEvent{StreamSID: "MZ1", CallSID: "CA1", From: "+15550123"}
	ai.events <- aibackend.SessionReady{}
	ai.events <- aibackend.Transcription{Text: "I need to speak to a human please", IsFinal: true}

	select {
	case <-control.done:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer never happened")
	}

	tel.events <- telephony.StopEvent{}
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not shut down")
	}

	select {
	case <-finalizer.done:
	case <-time.After(time.Second):
		t.Fatal("finalizer never ran")
	}

	control.mu.Lock()
	transfers := len(control.transfers)
	control.mu.Unlock()
	if transfers != 1 || control.transfers[0] != "CA1" {
		t.Fatalf("transfers = %v, want exactly one to CA1", control.transfers)
	}

	if !finalizer.result.Forwarded {
		t.Fatal("closing pipeline should see the forwarded flag")
	}
	if finalizer.result.CallSID != "CA1" || finalizer.result.From != "+15550123" {
		t.Fatalf("result = %+v", finalizer.result)
	}

	acks := 0
	for _, turn := range finalizer.result.State.Turns() {
		if turn.Role == RoleAssistant && turn.Text == transferAckText {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("acknowledgement turns = %d, want 1", acks)
	}

	// Teardown releases the attempt guard for this call identifier.
	if registry.Attempted("CA1") {
		t.Fatal("registry entry should be evicted at session close")
	}
}

// The stream stop before any start must still run the pipeline and not panic.
func TestSessionEmptyCall(t *testing.T) {
	tel := &scriptedTelephony{events: make(chan telephony.Event, 1)}
	finalizer := &captureFinalizer{done: make(chan struct{})}

	s := NewSession(Deps{
		Telephony:  tel,
		DialAI:     func(context.Context) (AIChannel, error) { return nil, errors.New("unused") },
		Registry:   NewAttemptRegistry(),
		Finalizer:  finalizer,
		Forwarding: DefaultForwardingConfig(),
		Thresholds: RealtimeThresholds,
		Log:        testLog(),
	})

	tel.events <- telephony.StopEvent{}
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case <-finalizer.done:
	case <-time.After(time.Second):
		t.Fatal("finalizer never ran")
	}
	if len(finalizer.result.State.Turns()) != 0 {
		t.Fatal("no turns expected on an empty call")
	}
}
