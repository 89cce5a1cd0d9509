package call

import "testing"

type fakeAISink struct {
	truncated    []string
	truncateAtMS []int64
	responses    int
}

func (f *fakeAISink) AppendAudio(string) error { return nil }

func (f *fakeAISink) TruncateItem(itemID string, contentIndex int, audioEndMS int64) error {
	f.truncated = append(f.truncated, itemID)
	f.truncateAtMS = append(f.truncateAtMS, audioEndMS)
	return nil
}

func (f *fakeAISink) CreateResponse() error {
	f.responses++
	return nil
}

type fakeTelSink struct {
	sent   []string
	marks  []string
	clears int
}

func (f *fakeTelSink) SendAudio(_, payloadB64 string) error {
	f.sent = append(f.sent, payloadB64)
	return nil
}

func (f *fakeTelSink) SendMark(_, name string) error {
	f.marks = append(f.marks, name)
	return nil
}

func (f *fakeTelSink) Clear(string) error {
	f.clears++
	return nil
}

func TestInterruptTruncatesAtElapsedOffset(t *testing.T) {
	ai := &fakeAISink{}
	tel := &fakeTelSink{}
	b := NewBargeIn(testLog())

	ps := NewPlaybackState()
	ps.ResponseStartMS = 3000
	ps.LatestMediaMS = 5000
	ps.LastAssistantItem = "item-1"
	ps.MarkQueue = []string{"m1", "m2"}

	if !b.Interrupt(&ps, "MZxx", ai, tel) {
		t.Fatal("expected a truncate")
	}

	if len(ai.truncated) != 1 || ai.truncated[0] != "item-1" {
		t.Fatalf("truncated = %v", ai.truncated)
	}
	if ai.truncateAtMS[0] != 2000 {
		t.Fatalf("truncate offset = %d, want 2000", ai.truncateAtMS[0])
	}
	if tel.clears != 1 {
		t.Fatalf("clears = %d, want 1", tel.clears)
	}
	if ps.Speaking() || ps.ResponseStartMS != -1 || len(ps.MarkQueue) != 0 {
		t.Fatalf("playback state not reset: %+v", ps)
	}
}

func TestInterruptNoopWhenNotSpeaking(t *testing.T) {
	ai := &fakeAISink{}
	tel := &fakeTelSink{}
	b := NewBargeIn(testLog())

	ps := NewPlaybackState()
	if b.Interrupt(&ps, "MZxx", ai, tel) {
		t.Fatal("no in-flight assistant turn, nothing to truncate")
	}
	if len(ai.truncated) != 0 || tel.clears != 0 {
		t.Fatal("no side effects expected")
	}
}

func TestInterruptSkipsBelowMinimumElapsed(t *testing.T) {
	ai := &fakeAISink{}
	tel := &fakeTelSink{}
	b := NewBargeIn(testLog())

	ps := NewPlaybackState()
	ps.ResponseStartMS = 1000
	ps.LatestMediaMS = 1100
	ps.LastAssistantItem = "item-1"

	if b.Interrupt(&ps, "MZxx", ai, tel) {
		t.Fatal("100ms elapsed is under the jitter floor")
	}
	if !ps.Speaking() {
		t.Fatal("state must be untouched when skipping")
	}
}
