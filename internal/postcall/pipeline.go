// Package postcall runs the closing pipeline after a phone call ends:
// archive the recording, transcribe it, summarize the conversation, submit
// the ticket, and persist the call record.
package postcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/voicedesk/internal/call"
	"github.com/yoockh/voicedesk/internal/models"
	mongorepo "github.com/yoockh/voicedesk/internal/repositories/mongo"
	"github.com/yoockh/voicedesk/internal/repositories/postgres"
	"github.com/yoockh/voicedesk/internal/storage"
	"github.com/yoockh/voicedesk/internal/summarizer"
	"github.com/yoockh/voicedesk/internal/ticketing"
)

// Pipeline implements the session Finalizer. Every dependency is optional:
// a nil collaborator skips its step, and a failing step degrades the later
// ones instead of aborting the pipeline.
type Pipeline struct {
	Uploader     storage.Uploader
	Transcriber  Transcriber
	Summarizer   *summarizer.Summarizer
	Tickets      *ticketing.Client
	Calls        postgres.CallRepo
	Observations mongorepo.ObservationRepository
	Log          *logrus.Entry
}

// Transcriber is the batch speech-to-text step over the full recording.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error)
}

func (p *Pipeline) Finalize(ctx context.Context, result call.CallResult) {
	log := p.Log.WithField("session_id", result.SessionID)

	recordingURL := p.uploadRecording(ctx, log, result)
	auditTranscript := p.transcribeRecording(ctx, log, result)

	var draft summarizer.TicketDraft
	if p.Summarizer != nil {
		draft = p.Summarizer.Summarize(ctx, result.State, auditTranscript)
	}

	if p.Tickets != nil {
		if err := p.Tickets.Submit(ctx, result.SessionID, draft); err != nil {
			log.WithError(err).Warn("ticket submission failed")
		}
	}

	p.archiveObservations(ctx, log, result)
	p.persistRecord(ctx, log, result, draft, recordingURL)

	log.Info("post-call pipeline finished")
}

func (p *Pipeline) uploadRecording(ctx context.Context, log *logrus.Entry, result call.CallResult) string {
	if p.Uploader == nil || result.Recorder == nil || !result.Recorder.HasAudio() {
		return ""
	}

	wav, err := result.Recorder.WAV()
	if err != nil {
		log.WithError(err).Warn("recording render failed")
		return ""
	}

	objectName := fmt.Sprintf("recordings/%s/%s.wav",
		result.StartedAt.UTC().Format("2006-01-02"), result.SessionID)
	url, err := p.Uploader.Upload(ctx, objectName, "audio/wav", bytes.NewReader(wav))
	if err != nil {
		log.WithError(err).Warn("recording upload failed")
		return ""
	}

	log.WithField("object", objectName).Info("recording archived")
	return url
}

func (p *Pipeline) transcribeRecording(ctx context.Context, log *logrus.Entry, result call.CallResult) string {
	if p.Transcriber == nil || result.Recorder == nil || !result.Recorder.HasAudio() {
		return ""
	}

	text, confidence, err := p.Transcriber.Transcribe(ctx, result.Recorder.Raw(), "")
	if err != nil {
		log.WithError(err).Warn("batch transcription failed")
		return ""
	}

	log.WithField("confidence", confidence).Info("recording transcribed")
	return text
}

func (p *Pipeline) archiveObservations(ctx context.Context, log *logrus.Entry, result call.CallResult) {
	if p.Observations == nil {
		return
	}

	raw := result.State.RawObservations()
	if len(raw) == 0 {
		return
	}

	docs := make([]models.SpeechObservation, 0, len(raw))
	for _, ev := range raw {
		docs = append(docs, models.SpeechObservation{
			SessionID:  result.SessionID,
			Seq:        ev.Seq,
			Text:       ev.Text,
			Confidence: ev.Confidence,
			IsFinal:    ev.IsFinal,
			Synthetic:  ev.Synthetic,
			DurationMS: ev.DurationMS,
			Timestamp:  ev.Timestamp,
		})
	}
	if err := p.Observations.InsertMany(ctx, docs); err != nil {
		log.WithError(err).Warn("observation archive failed")
	}
}

func (p *Pipeline) persistRecord(ctx context.Context, log *logrus.Entry, result call.CallResult, draft summarizer.TicketDraft, recordingURL string) {
	if p.Calls == nil {
		return
	}

	transcript, err := json.Marshal(result.State.Turns())
	if err != nil {
		transcript = []byte("[]")
	}

	var duration float64
	if result.Recorder != nil {
		duration = result.Recorder.DurationSeconds()
	}

	var forwardReason string
	if result.Forwarded {
		forwardReason = "forwarded to human agent"
	}

	rec := &models.CallRecord{
		ID:              uuid.NewString(),
		CallSID:         result.CallSID,
		StreamSID:       result.StreamSID,
		FromNum:         result.From,
		Forwarded:       result.Forwarded,
		ForwardReason:   forwardReason,
		TicketSubject:   draft.Subject,
		TicketPriority:  string(draft.Priority),
		CallerEmail:     draft.Email,
		RecordingURL:    recordingURL,
		DurationSeconds: duration,
		Transcript:      datatypes.JSON(transcript),
		StartedAt:       result.StartedAt,
		EndedAt:         result.EndedAt,
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}

	if err := p.Calls.Insert(ctx, rec); err != nil {
		log.WithError(err).Warn("call record insert failed")
	}
}
