package main

import (
	"context"
	"errors"
	"log"
	"os"

	"photoshare-backend/internal/ingest"
	"photoshare-backend/internal/records"
	"photoshare-backend/internal/storage"
	"photoshare-backend/internal/vision"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// Clients are initialized once at cold start and reused across invocations;
// nothing here is mutated after init.
type handler struct {
	pipeline *ingest.Pipeline
}

func (h *handler) Invoke(ctx context.Context, s3Event events.S3Event) error {
	for _, record := range s3Event.Records {
		n := ingest.Notification{
			Bucket: record.S3.Bucket.Name,
			Key:    record.S3.Object.Key,
		}

		if err := h.pipeline.Handle(ctx, n); err != nil {
			// A malformed key is handled locally and must not be retried;
			// anything else is surfaced so the event gets redelivered.
			if errors.Is(err, ingest.ErrMalformedKey) {
				continue
			}
			return err
		}
	}

	return nil
}

func main() {
	region := os.Getenv("AWS_REGION")

	objectStore, err := storage.NewS3ObjectStore(storage.S3ClientConfig{Region: region})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	dynamoClient, err := records.NewDynamoClient(records.DynamoClientConfig{Region: region})
	if err != nil {
		log.Fatalf("Failed to create dynamodb client: %v", err)
	}
	recordStore := records.NewDynamoStore(dynamoClient, os.Getenv("DYNAMO_TABLE"), os.Getenv("TASKS_TABLE"))

	classifier, err := vision.NewRekognitionClassifier(region)
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	h := &handler{pipeline: ingest.NewPipeline(objectStore, classifier, recordStore)}

	lambda.Start(h.Invoke)
}
