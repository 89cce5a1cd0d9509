package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SpeechObservation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Seq       int64              `bson:"seq" json:"seq"`

	Text       string   `bson:"text" json:"text"`
	Confidence *float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
	IsFinal    bool     `bson:"is_final" json:"is_final"`
	Synthetic  bool     `bson:"synthetic,omitempty" json:"synthetic,omitempty"`

	DurationMS int64     `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
