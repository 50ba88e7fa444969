package models

// ObjectCreatedPayload is the minimal object-creation notification published
// to the notifications queue. Bucket notification sources (MinIO, AWS S3)
// publish full S3 event records instead; the worker accepts both shapes.
type ObjectCreatedPayload struct {
	Bucket string `json:"bucket"`
	// Key is the object key as it appears in the event, i.e. still URL-escaped.
	Key string `json:"key"`
}
