package call

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeControl struct {
	transfers   []string
	briefings   []string
	failFirst   bool
	failAlways  bool
	refreshed   string
	lookupErr   error
	lookupCalls int
}

func (f *fakeControl) Transfer(_ context.Context, callSID, briefing string) error {
	f.transfers = append(f.transfers, callSID)
	f.briefings = append(f.briefings, briefing)
	if f.failAlways {
		return errors.New("provider rejected update")
	}
	if f.failFirst && len(f.transfers) == 1 {
		return errors.New("call no longer active")
	}
	return nil
}

func (f *fakeControl) FindActiveCallSID(context.Context, string) (string, error) {
	f.lookupCalls++
	return f.refreshed, f.lookupErr
}

func newTestOrchestrator(control CallControl, turns ...Turn) (*Orchestrator, *ConversationState) {
	state := NewConversationState()
	tr := NewTranscript(state, RealtimeThresholds, testLog())
	for _, turn := range turns {
		tr.AppendTurn(turn.Role, turn.Text, nil)
	}
	o := NewOrchestrator(control, tr, state, testLog())
	o.grace = 0
	o.pause = 0
	return o, state
}

func lastAssistantText(state *ConversationState) string {
	turns := state.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return turns[i].Text
		}
	}
	return ""
}

func TestExecuteAcknowledgesOnceAndTransfers(t *testing.T) {
	control := &fakeControl{}
	o, state := newTestOrchestrator(control,
		Turn{Role: RoleUser, Text: "I'd like to speak to a human"},
	)

	req := TransferRequest{CallSID: "CA1", StreamSID: "MZ1"}
	if err := o.Execute(context.Background(), req, Verdict{ShouldForward: true, Reason: "explicit request"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(control.transfers) != 1 || control.transfers[0] != "CA1" {
		t.Fatalf("transfers = %v, want exactly one to CA1", control.transfers)
	}
	if got := lastAssistantText(state); got != transferAckText {
		t.Fatalf("ack turn = %q", got)
	}

	// The briefing carries recent context and placeholder contact fields.
	b := control.briefings[0]
	if !strings.Contains(b, "Not provided") || !strings.Contains(b, "speak to a human") {
		t.Fatalf("briefing = %q", b)
	}
}

func TestExecuteSkipsAckWhenAssistantAnnounced(t *testing.T) {
	control := &fakeControl{}
	o, state := newTestOrchestrator(control,
		Turn{Role: RoleUser, Text: "can you get me a person"},
		Turn{Role: RoleAssistant, Text: "Of course, I'll transfer you right away."},
	)

	before := len(state.Turns())
	req := TransferRequest{CallSID: "CA1", StreamSID: "MZ1"}
	if err := o.Execute(context.Background(), req, Verdict{ShouldForward: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(state.Turns()) != before {
		t.Fatal("no duplicate acknowledgement expected")
	}
}

func TestExecuteRetriesOnceWithRefreshedSID(t *testing.T) {
	control := &fakeControl{failFirst: true, refreshed: "CA2"}
	o, _ := newTestOrchestrator(control,
		Turn{Role: RoleUser, Text: "agent please, talk to a human"},
	)

	req := TransferRequest{CallSID: "CA1", StreamSID: "MZ1"}
	if err := o.Execute(context.Background(), req, Verdict{ShouldForward: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(control.transfers) != 2 || control.transfers[1] != "CA2" {
		t.Fatalf("transfers = %v, want retry against refreshed identifier", control.transfers)
	}
	if control.lookupCalls != 1 {
		t.Fatalf("lookups = %d, want 1", control.lookupCalls)
	}
}

func TestExecuteGivesUpAfterRetry(t *testing.T) {
	control := &fakeControl{failAlways: true, refreshed: "CA2"}
	o, state := newTestOrchestrator(control,
		Turn{Role: RoleUser, Text: "talk to a human"},
	)

	req := TransferRequest{CallSID: "CA1", StreamSID: "MZ1"}
	err := o.Execute(context.Background(), req, Verdict{ShouldForward: true})
	if err == nil {
		t.Fatal("expected failure after retry")
	}

	if len(control.transfers) != 2 {
		t.Fatalf("transfers = %v, want exactly two attempts", control.transfers)
	}
	if got := lastAssistantText(state); got != transferFailText {
		t.Fatalf("failure turn = %q", got)
	}
}

func TestExecuteRejectsMissingIdentifiers(t *testing.T) {
	control := &fakeControl{}
	o, state := newTestOrchestrator(control)

	err := o.Execute(context.Background(), TransferRequest{StreamSID: "MZ1"}, Verdict{ShouldForward: true})
	if err == nil {
		t.Fatal("expected invalid-argument error")
	}
	if len(control.transfers) != 0 {
		t.Fatal("no transfer should be attempted without a call identifier")
	}
	if got := lastAssistantText(state); got != transferNoCallText {
		t.Fatalf("diagnostic turn = %q", got)
	}
}
