package writers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/writers"
)

func TestRESTWritesMessageRow(t *testing.T) {
	t.Parallel()
	var (
		gotPath string
		gotRow  map[string]any
		gotAuth string
		gotKey  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotRow)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	writer := writers.NewREST(srv.URL, writers.WithRESTAuth("anon-key", "jwt-token"))
	rec := messageRecord(t)
	if err := writer.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	if gotPath != "/messages" {
		t.Fatalf("path = %s, want /messages", gotPath)
	}
	if gotAuth != "Bearer jwt-token" || gotKey != "anon-key" {
		t.Fatalf("auth headers = %q / %q", gotAuth, gotKey)
	}
	if gotRow["id"] != rec.ID {
		t.Fatalf("row id = %v, want %s", gotRow["id"], rec.ID)
	}
	if gotRow["sender_id"] != "user-1" || gotRow["conversation_id"] != "conv-1" || gotRow["body"] != "hello" {
		t.Fatalf("row = %v", gotRow)
	}
	// Extra payload fields ride along; created_at is the enqueue timestamp.
	if gotRow["reply_to"] != "m-9" {
		t.Fatalf("extra field missing: %v", gotRow)
	}
	if _, err := time.Parse(time.RFC3339Nano, gotRow["created_at"].(string)); err != nil {
		t.Fatalf("created_at = %v: %v", gotRow["created_at"], err)
	}
}

func TestRESTConflictStatuses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http conflict", status: http.StatusConflict, body: `{"message":"duplicate key"}`},
		{name: "sqlstate in body", status: http.StatusBadRequest, body: `{"code":"23505"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			writer := writers.NewREST(srv.URL)
			if err := writer.Write(context.Background(), messageRecord(t)); !errors.Is(err, outbox.ErrConflict) {
				t.Fatalf("Write error = %v, want ErrConflict", err)
			}
		})
	}
}

func TestRESTGenericFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("try later"))
	}))
	t.Cleanup(srv.Close)

	writer := writers.NewREST(srv.URL)
	err := writer.Write(context.Background(), messageRecord(t))
	if err == nil || errors.Is(err, outbox.ErrConflict) {
		t.Fatalf("Write error = %v, want generic failure", err)
	}
}

func TestRESTUnsupportedKind(t *testing.T) {
	t.Parallel()
	writer := writers.NewREST("http://localhost:0")
	rec, err := outbox.NewUpload("user-1", outbox.UploadPayload{Bucket: "media", Path: "a.jpg", Source: "/tmp/a.jpg"})
	if err != nil {
		t.Fatalf("NewUpload returned error: %v", err)
	}
	if err := writer.Write(context.Background(), rec); !errors.Is(err, outbox.ErrUnsupportedKind) {
		t.Fatalf("Write error = %v, want ErrUnsupportedKind", err)
	}
}

func messageRecord(t *testing.T) outbox.Record {
	t.Helper()
	rec, err := outbox.NewMessage("user-1", outbox.MessagePayload{
		ConversationID: "conv-1",
		Body:           "hello",
		Extra:          map[string]any{"reply_to": "m-9"},
	})
	if err != nil {
		t.Fatalf("NewMessage returned error: %v", err)
	}
	return rec
}
