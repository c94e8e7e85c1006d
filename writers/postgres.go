// Package writers provides backend write implementations for the outbox
// engine: direct Postgres inserts, the hosted REST API, and the media
// ingestion queue for uploads.
package writers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuwebai/instadetox-outbox"
)

// Postgres replays message and post mutations as direct inserts. The record
// id is the row's primary key, so a unique violation means the write already
// landed and is reported as outbox.ErrConflict.
type Postgres struct {
	db            *sql.DB
	messagesTable string
	postsTable    string
}

// PostgresOption configures a Postgres writer.
type PostgresOption func(*Postgres)

// WithMessagesTable overrides the default messages table name.
func WithMessagesTable(name string) PostgresOption {
	return func(w *Postgres) {
		if name != "" {
			w.messagesTable = name
		}
	}
}

// WithPostsTable overrides the default posts table name.
func WithPostsTable(name string) PostgresOption {
	return func(w *Postgres) {
		if name != "" {
			w.postsTable = name
		}
	}
}

// NewPostgres creates a Writer that inserts directly into the backend
// database.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	w := &Postgres{
		db:            db,
		messagesTable: "messages",
		postsTable:    "posts",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements outbox.Writer.
func (w *Postgres) Write(ctx context.Context, rec outbox.Record) error {
	switch rec.Kind {
	case outbox.KindMessage:
		return w.writeMessage(ctx, rec)
	case outbox.KindPost:
		return w.writePost(ctx, rec)
	default:
		return fmt.Errorf("%w: %q", outbox.ErrUnsupportedKind, rec.Kind)
	}
}

func (w *Postgres) writeMessage(ctx context.Context, rec outbox.Record) error {
	p, err := rec.Message()
	if err != nil {
		return err
	}
	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return err
	}
	// The record's original created_at is written through so message order
	// matches user intent, not delivery time.
	query := fmt.Sprintf(`
INSERT INTO %q (id, conversation_id, sender_id, body, extra, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, w.messagesTable)
	_, err = w.db.ExecContext(ctx, query,
		rec.ID, p.ConversationID, rec.OwnerID, p.Body, extra, rec.CreatedAt.UTC())
	return mapDuplicate(err, rec)
}

func (w *Postgres) writePost(ctx context.Context, rec outbox.Record) error {
	p, err := rec.Post()
	if err != nil {
		return err
	}
	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %q (id, author_id, content, media_url, extra, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, w.postsTable)
	_, err = w.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, p.Content, nullable(p.MediaURL), extra, rec.CreatedAt.UTC())
	return mapDuplicate(err, rec)
}

func mapDuplicate(err error, rec outbox.Record) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", outbox.ErrConflict, rec.ID)
	}
	return err
}

func marshalExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("writers: failed to marshal extra fields: %w", err)
	}
	return raw, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ outbox.Writer = (*Postgres)(nil)

// timeLayout is the wire format for timestamps sent to the REST backend.
const timeLayout = time.RFC3339Nano
