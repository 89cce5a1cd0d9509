package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallRecord struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CallSID   string `gorm:"column:call_sid;type:text;index" json:"call_sid"`
	StreamSID string `gorm:"column:stream_sid;type:text;index" json:"stream_sid"`
	FromNum   string `gorm:"column:from_num;type:text" json:"from_num"`

	Forwarded     bool   `gorm:"column:forwarded" json:"forwarded"`
	ForwardReason string `gorm:"column:forward_reason;type:text" json:"forward_reason,omitempty"`

	TicketSubject  string `gorm:"column:ticket_subject;type:text" json:"ticket_subject,omitempty"`
	TicketPriority string `gorm:"column:ticket_priority;type:text" json:"ticket_priority,omitempty"` // HIGH|MEDIUM|LOW
	CallerEmail    string `gorm:"column:caller_email;type:text" json:"caller_email,omitempty"`

	RecordingURL    string  `gorm:"column:recording_url;type:text" json:"recording_url,omitempty"`
	DurationSeconds float64 `gorm:"column:duration_seconds" json:"duration_seconds"`

	Transcript datatypes.JSON `gorm:"column:transcript;type:jsonb" json:"transcript,omitempty"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	StartedAt time.Time `gorm:"column:started_at;type:timestamptz;index" json:"started_at"`
	EndedAt   time.Time `gorm:"column:ended_at;type:timestamptz" json:"ended_at"`
}

func (CallRecord) TableName() string { return "call_records" }
