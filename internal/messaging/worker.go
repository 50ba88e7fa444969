package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"photoshare-backend/internal/ingest"
	"photoshare-backend/pkg/models"

	"github.com/aws/aws-lambda-go/events"
)

// Worker drains the notifications queue and runs each object-creation event
// through the ingestion pipeline. Concurrency of n runs n consumers over the
// shared delivery channel; deliveries for the same task id may be processed
// concurrently (last write wins on the task record).
type Worker struct {
	pipeline    *ingest.Pipeline
	receiver    Receiver
	concurrency int
}

func NewWorker(pipeline *ingest.Pipeline, receiver Receiver, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{pipeline: pipeline, receiver: receiver, concurrency: concurrency}
}

// Run blocks until the receiver's task channel is closed or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case task, ok := <-w.receiver.Tasks():
					if !ok {
						return
					}
					w.process(ctx, task)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	wg.Wait()
}

func (w *Worker) process(ctx context.Context, task Task) {
	notifications, err := parseNotifications(task.Payload())
	if err != nil {
		slog.Error("discarding malformed notification", "error", err, "payload", string(task.Payload()))
		if err := task.Reject(); err != nil {
			slog.Error("failed to reject task", "error", err)
		}
		return
	}

	for _, n := range notifications {
		if err := w.pipeline.Handle(ctx, n); err != nil {
			if errors.Is(err, ingest.ErrMalformedKey) {
				// Handled locally, nothing to redeliver.
				if err := task.Reject(); err != nil {
					slog.Error("failed to reject task", "error", err)
				}
				return
			}

			slog.Error("failed to process notification", "bucket", n.Bucket, "key", n.Key, "error", err)
			if err := task.Nack(); err != nil {
				slog.Error("failed to nack task", "error", err)
			}
			return
		}
	}

	if err := task.Ack(); err != nil {
		slog.Error("failed to ack task", "error", err)
	}
}

// parseNotifications accepts either full S3 event records, as emitted by AWS
// and MinIO bucket notifications, or the compact ObjectCreatedPayload shape.
func parseNotifications(payload []byte) ([]ingest.Notification, error) {
	var event events.S3Event
	if err := json.Unmarshal(payload, &event); err == nil && len(event.Records) > 0 {
		notifications := make([]ingest.Notification, 0, len(event.Records))
		for _, record := range event.Records {
			notifications = append(notifications, ingest.Notification{
				Bucket: record.S3.Bucket.Name,
				Key:    record.S3.Object.Key,
			})
		}
		return notifications, nil
	}

	var compact models.ObjectCreatedPayload
	if err := json.Unmarshal(payload, &compact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	if compact.Bucket == "" || compact.Key == "" {
		return nil, fmt.Errorf("notification is missing bucket or key")
	}

	return []ingest.Notification{{Bucket: compact.Bucket, Key: compact.Key}}, nil
}
