package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yoockh/voicedesk/config"
	"github.com/yoockh/voicedesk/internal/api/handlers"
	"github.com/yoockh/voicedesk/internal/api/middleware"
	"github.com/yoockh/voicedesk/internal/api/routes"
	"github.com/yoockh/voicedesk/internal/cache"
	"github.com/yoockh/voicedesk/internal/call"
	"github.com/yoockh/voicedesk/internal/knowledge"
	"github.com/yoockh/voicedesk/internal/logger"
	"github.com/yoockh/voicedesk/internal/models"
	"github.com/yoockh/voicedesk/internal/postcall"
	"github.com/yoockh/voicedesk/internal/providers/llm"
	"github.com/yoockh/voicedesk/internal/providers/stt"
	mongorepo "github.com/yoockh/voicedesk/internal/repositories/mongo"
	"github.com/yoockh/voicedesk/internal/repositories/postgres"
	"github.com/yoockh/voicedesk/internal/storage"
	"github.com/yoockh/voicedesk/internal/summarizer"
	"github.com/yoockh/voicedesk/internal/telephony"
	"github.com/yoockh/voicedesk/internal/ticketing"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	le := l.WithField("app", "voicedesk")
	ctx := context.Background()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(&models.CallRecord{}, &models.KBArticle{}); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}

	mongoDBName := os.Getenv("MONGO_DB")
	if mongoDBName == "" {
		mongoDBName = "voicedesk"
	}

	callRepo := postgres.NewCallRepo(config.PostgresDB)
	kbRepo := postgres.NewKBRepo(config.PostgresDB)
	obsRepo := mongorepo.NewObservationRepo(config.MongoClient.Database(mongoDBName))

	kb := knowledge.NewLoader(kbRepo, cache.NewRedisCache(config.RedisClient), le)

	// LLM provider backs the forwarding adjudicator and the ticket labeler.
	// Missing credentials degrade to heuristics only.
	var (
		adjudicator call.Adjudicator
		labeler     summarizer.Labeler
	)
	if projectID := os.Getenv("GOOGLE_PROJECT_ID"); projectID != "" {
		gemini, err := llm.NewVertexGemini(ctx, projectID, os.Getenv("GOOGLE_LOCATION"), os.Getenv("GEMINI_MODEL"))
		if err != nil {
			le.WithError(err).Warn("vertex init failed, running without LLM")
		} else {
			defer gemini.Close()
			adjudicator = llm.NewAdjudicator(gemini, le)
			labeler = llm.NewLabeler(gemini)
		}
	}

	var transcriber postcall.Transcriber
	if speech, err := stt.NewGoogleSpeech(ctx); err != nil {
		le.WithError(err).Warn("speech init failed, running without batch transcription")
	} else {
		defer speech.Close()
		transcriber = speech
	}

	var uploader *storage.GCSUploader
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		var err error
		if uploader, err = storage.NewGCSUploader(ctx, bucket); err != nil {
			le.WithError(err).Warn("gcs init failed, running without recording archive")
			uploader = nil
		} else {
			defer uploader.Close()
		}
	}

	var tickets *ticketing.Client
	if endpoint := os.Getenv("TICKETS_ENDPOINT"); endpoint != "" {
		tickets = ticketing.NewClient(endpoint, os.Getenv("TICKETS_API_KEY"), le)
	}

	pipeline := &postcall.Pipeline{
		Transcriber:  transcriber,
		Summarizer:   summarizer.New(labeler, le),
		Tickets:      tickets,
		Calls:        callRepo,
		Observations: obsRepo,
		Log:          le,
	}
	if uploader != nil {
		pipeline.Uploader = uploader
	}

	control := telephony.NewTwilioControl(
		os.Getenv("TWILIO_ACCOUNT_SID"),
		os.Getenv("TWILIO_AUTH_TOKEN"),
		os.Getenv("TRANSFER_NUMBER"),
		le,
	)

	forwarding := call.DefaultForwardingConfig()
	forwarding.TransferNumber = os.Getenv("TRANSFER_NUMBER")
	if os.Getenv("FORWARDING_ENABLED") == "false" || forwarding.TransferNumber == "" {
		forwarding.Enabled = false
	}

	media := handlers.NewMediaHandler(handlers.MediaDeps{
		Control:     control,
		Registry:    call.NewAttemptRegistry(),
		Adjudicator: adjudicator,
		Finalizer:   pipeline,
		Knowledge:   kb,
		Redis:       config.RedisClient,
		Forwarding:  forwarding,
		Log:         le,
	})

	var signer storage.Signer
	if uploader != nil {
		signer = uploader
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Voice: handlers.NewVoiceHandler(le),
		Media: media,
		Calls: handlers.NewCallHandler(callRepo, signer),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	le.WithField("port", port).Info("server starting")
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
