// Package outbox provides primitives for an offline mutation outbox: user
// writes queued on-device while disconnected and replayed against the
// backend in strict FIFO order.
package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the backend operation a queued mutation performs.
// The set is closed; unknown kinds are rejected at construction time so a
// record that cannot be replayed never enters the queue.
type Kind string

const (
	// KindMessage inserts a conversation message row.
	KindMessage Kind = "message"
	// KindPost inserts a post row.
	KindPost Kind = "post"
	// KindUpload hands a media upload to the ingestion queue.
	KindUpload Kind = "upload"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindPost, KindUpload:
		return true
	}
	return false
}

// Status tracks a record through the replay state machine.
type Status string

const (
	// StatusPending marks a record eligible for the next drain.
	StatusPending Status = "pending"
	// StatusRetrying marks a record whose replay attempt is in flight.
	StatusRetrying Status = "retrying"
	// StatusFailed is terminal: the retry budget is exhausted (or the kind
	// turned out to be unreplayable) and the record is left for operators.
	StatusFailed Status = "failed"
)

// Record represents one user-initiated write that must eventually reach the
// backend exactly-once-in-effect. ID is minted once at construction and
// reused as the primary key of the eventual backend row, which is what makes
// replay idempotent.
type Record struct {
	// ID is the client-generated idempotency key, stable across retries.
	ID string
	// OwnerID attributes the mutation to the acting user.
	OwnerID string
	// Kind selects the replay branch.
	Kind Kind
	// Payload is the kind-specific data, stored as JSON.
	Payload json.RawMessage
	// CreatedAt is the enqueue-time client timestamp. It doubles as the FIFO
	// sort key and as the backend row's created_at, so user-perceived
	// ordering survives delayed delivery.
	CreatedAt time.Time
	// Status is the replay state of the record.
	Status Status
	// RetryCount is the number of failed attempts so far.
	RetryCount int
	// LastError holds the most recent failure message, diagnostics only.
	LastError string
}

// MessagePayload carries the fields needed to insert a conversation message.
type MessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
	// Extra is merged verbatim into the backend row (e.g. reply_to, media refs).
	Extra map[string]any `json:"extra,omitempty"`
}

func (p MessagePayload) validate() error {
	if p.ConversationID == "" {
		return errors.New("outbox: conversation id is required")
	}
	if p.Body == "" {
		return errors.New("outbox: message body is required")
	}
	return nil
}

// PostPayload carries the fields needed to construct a post row.
type PostPayload struct {
	Content  string         `json:"content"`
	MediaURL string         `json:"media_url,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

func (p PostPayload) validate() error {
	if p.Content == "" && p.MediaURL == "" {
		return errors.New("outbox: post needs content or media")
	}
	return nil
}

// UploadPayload describes a media upload handed to the ingestion queue.
type UploadPayload struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	// Source is where the pending bytes live on the device.
	Source string `json:"source"`
}

func (p UploadPayload) validate() error {
	if p.Bucket == "" || p.Path == "" {
		return errors.New("outbox: upload bucket and path are required")
	}
	if p.Source == "" {
		return errors.New("outbox: upload source is required")
	}
	return nil
}

// NewMessage builds a pending message record owned by ownerID.
func NewMessage(ownerID string, payload MessagePayload) (Record, error) {
	if err := payload.validate(); err != nil {
		return Record{}, err
	}
	return newRecord(ownerID, KindMessage, payload)
}

// NewPost builds a pending post record owned by ownerID.
func NewPost(ownerID string, payload PostPayload) (Record, error) {
	if err := payload.validate(); err != nil {
		return Record{}, err
	}
	return newRecord(ownerID, KindPost, payload)
}

// NewUpload builds a pending upload record owned by ownerID.
func NewUpload(ownerID string, payload UploadPayload) (Record, error) {
	if err := payload.validate(); err != nil {
		return Record{}, err
	}
	return newRecord(ownerID, KindUpload, payload)
}

func newRecord(ownerID string, kind Kind, payload any) (Record, error) {
	if ownerID == "" {
		return Record{}, errors.New("outbox: owner id is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("outbox: failed to marshal payload: %w", err)
	}
	return Record{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
	}, nil
}

// Validate ensures the minimal contract for inserting an outbox row. Stores
// call it on enqueue so a record with an unknown kind never enters the
// queue.
func (r Record) Validate() error {
	if r.ID == "" {
		return errors.New("outbox: record id is required")
	}
	if r.OwnerID == "" {
		return errors.New("outbox: owner id is required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("outbox: unknown kind %q", r.Kind)
	}
	if len(r.Payload) == 0 {
		return errors.New("outbox: payload is required")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("outbox: created_at is required")
	}
	return nil
}

// Decode unmarshals the payload into the provided destination.
func (r Record) Decode(dest any) error {
	return json.Unmarshal(r.Payload, dest)
}

// Message decodes the payload of a KindMessage record.
func (r Record) Message() (MessagePayload, error) {
	var p MessagePayload
	if r.Kind != KindMessage {
		return p, fmt.Errorf("outbox: record %s is %q, not a message", r.ID, r.Kind)
	}
	err := r.Decode(&p)
	return p, err
}

// Post decodes the payload of a KindPost record.
func (r Record) Post() (PostPayload, error) {
	var p PostPayload
	if r.Kind != KindPost {
		return p, fmt.Errorf("outbox: record %s is %q, not a post", r.ID, r.Kind)
	}
	err := r.Decode(&p)
	return p, err
}

// Upload decodes the payload of a KindUpload record.
func (r Record) Upload() (UploadPayload, error) {
	var p UploadPayload
	if r.Kind != KindUpload {
		return p, fmt.Errorf("outbox: record %s is %q, not an upload", r.ID, r.Kind)
	}
	err := r.Decode(&p)
	return p, err
}
