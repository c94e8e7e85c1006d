package main

import (
	"context"
	"flag"
	"log"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/example/internal/config"
	"github.com/tuwebai/instadetox-outbox/example/internal/database"
	"github.com/tuwebai/instadetox-outbox/stores"
)

func main() {
	conversation := flag.String("conversation", "demo-conversation", "target conversation id")
	body := flag.String("body", "hello from the outbox", "message body")
	flag.Parse()

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

	rec, err := outbox.NewMessage(cfg.OwnerID, outbox.MessagePayload{
		ConversationID: *conversation,
		Body:           *body,
	})
	if err != nil {
		log.Fatalf("build record: %v", err)
	}
	if err := store.Enqueue(ctx, rec); err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	log.Printf("queued message %s for %s", rec.ID, *conversation)
}
