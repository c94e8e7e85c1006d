package writers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/tuwebai/instadetox-outbox"
)

// SQSAPI is the slice of the SQS client the writer calls.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS hands upload mutations to the media-ingestion FIFO queue. The record
// id is used as the queue's deduplication id, so replaying an upload that
// already went through is absorbed by the queue rather than duplicated;
// messages are grouped by owner to keep per-user upload order.
type SQS struct {
	queueURL string
	client   SQSAPI
}

// NewSQS creates a Writer that targets the given FIFO queue.
func NewSQS(client SQSAPI, queueURL string) *SQS {
	return &SQS{
		queueURL: queueURL,
		client:   client,
	}
}

// uploadJob is the queue message consumed by the ingestion workers.
type uploadJob struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	ContentType string `json:"content_type,omitempty"`
	Source      string `json:"source"`
	CreatedAt   string `json:"created_at"`
}

// Write implements outbox.Writer.
func (w *SQS) Write(ctx context.Context, rec outbox.Record) error {
	if rec.Kind != outbox.KindUpload {
		return fmt.Errorf("%w: %q", outbox.ErrUnsupportedKind, rec.Kind)
	}
	p, err := rec.Upload()
	if err != nil {
		return err
	}
	body, err := json.Marshal(uploadJob{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Bucket:      p.Bucket,
		Path:        p.Path,
		ContentType: p.ContentType,
		Source:      p.Source,
		CreatedAt:   rec.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return err
	}

	_, err = w.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(w.queueURL),
		MessageBody:            aws.String(string(body)),
		MessageDeduplicationId: aws.String(rec.ID),
		MessageGroupId:         aws.String(rec.OwnerID),
	})
	return err
}

var _ outbox.Writer = (*SQS)(nil)
