package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoockh/voicedesk/internal/models"
)

const observationTTL = 7 * 24 * time.Hour

type ObservationRepository interface {
	Insert(ctx context.Context, obs *models.SpeechObservation) error
	InsertMany(ctx context.Context, obs []models.SpeechObservation) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SpeechObservation, error)
}

type observationRepo struct {
	col *mongo.Collection
}

func NewObservationRepo(db *mongo.Database) ObservationRepository {
	return &observationRepo{col: db.Collection("speech_observations")}
}

func (r *observationRepo) Insert(ctx context.Context, obs *models.SpeechObservation) error {
	stampObservation(obs)
	_, err := r.col.InsertOne(ctx, obs)
	return err
}

func (r *observationRepo) InsertMany(ctx context.Context, obs []models.SpeechObservation) error {
	if len(obs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(obs))
	for i := range obs {
		stampObservation(&obs[i])
		docs[i] = obs[i]
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *observationRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.SpeechObservation, error) {
	if limit <= 0 {
		limit = 500
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "seq", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.SpeechObservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func stampObservation(obs *models.SpeechObservation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now().UTC()
	}
	if obs.ExpiresAt.IsZero() {
		obs.ExpiresAt = obs.Timestamp.Add(observationTTL)
	}
}
