package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"net/http"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/example/internal/config"
	"github.com/tuwebai/instadetox-outbox/example/internal/database"
	"github.com/tuwebai/instadetox-outbox/example/internal/metrics"
	awssqs "github.com/tuwebai/instadetox-outbox/internal/lib/aws/sqs"
	"github.com/tuwebai/instadetox-outbox/stores"
	"github.com/tuwebai/instadetox-outbox/writers"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	db, err := database.OpenLocal(ctx, cfg.DataDir)
	if err != nil {
		log.Fatalf("open local database: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := stores.NewSQLite(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate outbox: %v", err)
	}

	writer, err := newWriter(ctx, cfg)
	if err != nil {
		log.Fatalf("init writer: %v", err)
	}

	hooks := metrics.NewStatsHook("outbox_drain")
	startMetricsServer()

	engine := outbox.NewEngine(store, writer, outbox.Options{
		Logger: logAdapter{},
		Hooks:  hooks,
		Identity: func(context.Context) (string, bool) {
			return cfg.OwnerID, cfg.OwnerID != ""
		},
	})
	ctrl := outbox.NewController(engine, store, outbox.ControllerOptions{
		DrainInterval: cfg.DrainInterval,
		Retention:     cfg.Retention,
		Logger:        logAdapter{},
	})

	log.Printf("outbox drain started (owner=%s)", cfg.OwnerID)
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("controller stopped: %v", err)
	}
}

// newWriter routes messages and posts to the backend and uploads to the
// ingestion queue when one is configured.
func newWriter(ctx context.Context, cfg config.Config) (outbox.Writer, error) {
	mux := outbox.Mux{}

	var rows outbox.Writer
	switch {
	case cfg.BackendDSN != "":
		backend, err := database.OpenBackend(ctx, cfg.BackendDSN)
		if err != nil {
			return nil, err
		}
		rows = writers.NewPostgres(backend)
	case cfg.BackendURL != "":
		rows = writers.NewREST(cfg.BackendURL, writers.WithRESTAuth(cfg.BackendAPIKey, cfg.BackendToken))
	default:
		return nil, fmt.Errorf("no backend configured")
	}
	mux[outbox.KindMessage] = rows
	mux[outbox.KindPost] = rows

	if cfg.UploadQueueURL != "" {
		client, err := awssqs.New(ctx, cfg.SQSEndpoint)
		if err != nil {
			return nil, err
		}
		mux[outbox.KindUpload] = writers.NewSQS(client, cfg.UploadQueueURL)
	}
	return mux, nil
}

type logAdapter struct{}

func (logAdapter) Info(_ context.Context, format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func (logAdapter) Warn(_ context.Context, format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

func (logAdapter) Error(_ context.Context, format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	go func() {
		if err := http.ListenAndServe(":8090", mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()
}
