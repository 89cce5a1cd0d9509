package ticketing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/summarizer"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func sampleDraft() summarizer.TicketDraft {
	return summarizer.TicketDraft{
		Subject:             "Hours inquiry",
		Summary:             "Caller asked about business hours.",
		Email:               "jane@example.com",
		Priority:            summarizer.PriorityLow,
		ResolvedQuestions:   []string{"What are your business hours?"},
		TranscriptRendering: "[10:00:00] user: What are your business hours?\n",
	}
}

func TestSubmitSendsPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", testLog())
	if err := c.Submit(context.Background(), "sess-1", sampleDraft()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.SessionID != "sess-1" || got.Priority != "LOW" {
		t.Fatalf("payload = %+v", got)
	}
	if got.TranscriptHTML == "" {
		t.Fatal("expected HTML rendering")
	}
}

func TestSubmitIdempotentPerSession(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLog())
	for i := 0; i < 3; i++ {
		if err := c.Submit(context.Background(), "sess-1", sampleDraft()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("endpoint hit %d times, want 1", n)
	}
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLog())
	if err := c.Submit(context.Background(), "sess-1", sampleDraft()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("endpoint hit %d times, want 2", n)
	}
}

func TestSubmitDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLog())
	if err := c.Submit(context.Background(), "sess-1", sampleDraft()); err == nil {
		t.Fatal("expected error for 422")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("endpoint hit %d times, want 1", n)
	}
}

func TestSubmitSkipsEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint should not be hit for empty transcript")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLog())
	draft := sampleDraft()
	draft.TranscriptRendering = "  "
	if err := c.Submit(context.Background(), "sess-1", draft); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
