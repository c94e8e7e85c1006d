package writers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tuwebai/instadetox-outbox"
)

// REST replays mutations through the hosted backend's table API
// (PostgREST-style: POST /{table} with a JSON row). HTTP 409, or an error
// body carrying SQLSTATE 23505, is reported as outbox.ErrConflict.
type REST struct {
	baseURL string
	apiKey  string
	token   string
	client  *http.Client
}

// RESTOption configures a REST writer.
type RESTOption func(*REST)

// WithRESTClient overrides the default HTTP client. The default carries no
// timeout; callers replaying over flaky links should set one so a hung call
// cannot block the queue indefinitely.
func WithRESTClient(c *http.Client) RESTOption {
	return func(w *REST) {
		if c != nil {
			w.client = c
		}
	}
}

// WithRESTAuth sets the API key and bearer token headers.
func WithRESTAuth(apiKey, token string) RESTOption {
	return func(w *REST) {
		w.apiKey = apiKey
		w.token = token
	}
}

// NewREST creates a Writer that posts rows to baseURL.
func NewREST(baseURL string, opts ...RESTOption) *REST {
	w := &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements outbox.Writer.
func (w *REST) Write(ctx context.Context, rec outbox.Record) error {
	table, row, err := w.row(rec)
	if err != nil {
		return err
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("writers: failed to marshal row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/"+table, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	if w.apiKey != "" {
		req.Header.Set("apikey", w.apiKey)
	}
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode == http.StatusConflict || strings.Contains(string(detail), "23505") {
		return fmt.Errorf("%w: %s", outbox.ErrConflict, rec.ID)
	}
	return fmt.Errorf("writers: %s insert failed: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(detail)))
}

// row builds the table name and row body for the record's kind. Extra
// payload fields are merged into the row verbatim, never overriding the
// identity and ordering columns.
func (w *REST) row(rec outbox.Record) (string, map[string]any, error) {
	switch rec.Kind {
	case outbox.KindMessage:
		p, err := rec.Message()
		if err != nil {
			return "", nil, err
		}
		row := make(map[string]any, len(p.Extra)+5)
		for k, v := range p.Extra {
			row[k] = v
		}
		row["id"] = rec.ID
		row["conversation_id"] = p.ConversationID
		row["sender_id"] = rec.OwnerID
		row["body"] = p.Body
		row["created_at"] = rec.CreatedAt.UTC().Format(timeLayout)
		return "messages", row, nil
	case outbox.KindPost:
		p, err := rec.Post()
		if err != nil {
			return "", nil, err
		}
		row := make(map[string]any, len(p.Extra)+5)
		for k, v := range p.Extra {
			row[k] = v
		}
		row["id"] = rec.ID
		row["author_id"] = rec.OwnerID
		row["content"] = p.Content
		if p.MediaURL != "" {
			row["media_url"] = p.MediaURL
		}
		row["created_at"] = rec.CreatedAt.UTC().Format(timeLayout)
		return "posts", row, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", outbox.ErrUnsupportedKind, rec.Kind)
	}
}

var _ outbox.Writer = (*REST)(nil)
