package writers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/test/database"
	"github.com/tuwebai/instadetox-outbox/writers"
)

func TestPostgresWriterReplay(t *testing.T) {
	ctx := context.Background()
	db := database.OpenPostgres(t)

	schema := `CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        conversation_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        body TEXT NOT NULL,
        extra JSONB NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL
    );
    CREATE TABLE IF NOT EXISTS posts (
        id TEXT PRIMARY KEY,
        author_id TEXT NOT NULL,
        content TEXT NOT NULL,
        media_url TEXT,
        extra JSONB NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL
    );`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `TRUNCATE messages; TRUNCATE posts;`)
	})

	writer := writers.NewPostgres(db)

	msg := messageRecord(t)
	if err := writer.Write(ctx, msg); err != nil {
		t.Fatalf("Write message: %v", err)
	}
	// Replaying the same record hits the primary key and reports conflict.
	if err := writer.Write(ctx, msg); !errors.Is(err, outbox.ErrConflict) {
		t.Fatalf("replay error = %v, want ErrConflict", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE id=$1", msg.ID).Scan(&n); err != nil || n != 1 {
		t.Fatalf("messages rows for %s = %d (err=%v), want 1", msg.ID, n, err)
	}

	post, err := outbox.NewPost("user-1", outbox.PostPayload{Content: "first post"})
	if err != nil {
		t.Fatalf("NewPost returned error: %v", err)
	}
	if err := writer.Write(ctx, post); err != nil {
		t.Fatalf("Write post: %v", err)
	}

	var createdAt string
	if err := db.QueryRowContext(ctx, "SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') FROM posts WHERE id=$1", post.ID).Scan(&createdAt); err != nil {
		t.Fatalf("select post: %v", err)
	}
	if createdAt != post.CreatedAt.UTC().Format("2006-01-02") {
		t.Fatalf("created_at = %s, want enqueue-time date %s", createdAt, post.CreatedAt.UTC().Format("2006-01-02"))
	}
}

func TestPostgresWriterUnsupportedKind(t *testing.T) {
	t.Parallel()
	writer := writers.NewPostgres(nil)
	rec, err := outbox.NewUpload("user-1", outbox.UploadPayload{Bucket: "media", Path: "a.jpg", Source: "/tmp/a.jpg"})
	if err != nil {
		t.Fatalf("NewUpload returned error: %v", err)
	}
	if err := writer.Write(context.Background(), rec); !errors.Is(err, outbox.ErrUnsupportedKind) {
		t.Fatalf("Write error = %v, want ErrUnsupportedKind", err)
	}
}
