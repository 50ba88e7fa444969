package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"photoshare-backend/internal/vision"
)

const (
	// Classifier settings for uploaded photos: at most 5 labels, each with at
	// least 75% confidence, in the classifier's ranking order.
	MaxLabels     = 5
	MinConfidence = 0.75
)

// ErrMalformedKey marks an object key that does not carry the expected
// user/task_id/... layout. The notification is considered handled: the
// pipeline performs no side effects and the event must not be redelivered.
var ErrMalformedKey = errors.New("malformed object key")

// Notification identifies one newly created object. Key is URL-escaped, as
// delivered in bucket notifications.
type Notification struct {
	Bucket string
	Key    string
}

// ObjectTagger is the slice of the object store the pipeline needs.
type ObjectTagger interface {
	TagObject(ctx context.Context, bucket, key string, tags map[string]string) error
}

// TaskStore is the slice of the record store the pipeline needs.
type TaskStore interface {
	UpdateTask(ctx context.Context, taskId, user string, labels []string) error
}

// Pipeline tags newly uploaded photos and enriches their task records with
// classifier labels. It is stateless; a single instance may be invoked
// concurrently, including for the same task id. Two invocations racing on one
// task id end in last write wins, there is no deduplication or ordering.
type Pipeline struct {
	objects    ObjectTagger
	classifier vision.Classifier
	tasks      TaskStore
}

func NewPipeline(objects ObjectTagger, classifier vision.Classifier, tasks TaskStore) *Pipeline {
	return &Pipeline{objects: objects, classifier: classifier, tasks: tasks}
}

// Handle processes one object-creation notification: it extracts user and
// task id from the key, tags the object with them, classifies the image, and
// overwrites the task record's user and labels.
//
// Failure handling is deliberately asymmetric: a malformed key returns
// ErrMalformedKey before any side effect; tagging and classification failures
// abort the invocation so the dispatcher can redeliver; a record update
// failure is logged and swallowed, leaving the invocation successful with
// tags written but the record unchanged.
func (p *Pipeline) Handle(ctx context.Context, n Notification) error {
	key, err := url.QueryUnescape(n.Key)
	if err != nil {
		slog.Error("object key is not valid url encoding", "bucket", n.Bucket, "key", n.Key, "error", err)
		return fmt.Errorf("%w: %q: %v", ErrMalformedKey, n.Key, err)
	}

	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		slog.Error("object key must look like user/task_id/filename", "bucket", n.Bucket, "key", key)
		return fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	user, taskId := parts[0], parts[1]

	// Downstream tooling discovers uploads through these tags, so a tagging
	// failure aborts the invocation before classification.
	tags := map[string]string{"user": user, "task_id": taskId}
	if err := p.objects.TagObject(ctx, n.Bucket, key, tags); err != nil {
		return fmt.Errorf("failed to tag object s3://%s/%s: %w", n.Bucket, key, err)
	}

	labels, err := p.classifier.DetectLabels(ctx, n.Bucket, key, MaxLabels, MinConfidence)
	if err != nil {
		return fmt.Errorf("failed to classify object s3://%s/%s: %w", n.Bucket, key, err)
	}

	names := make([]string, len(labels))
	for i, label := range labels {
		names[i] = label.Name
	}

	if err := p.tasks.UpdateTask(ctx, taskId, user, names); err != nil {
		// The object is already tagged and classified; losing the record
		// update degrades the post but the notification counts as handled.
		slog.Error("failed to update task record", "task_id", taskId, "user", user, "error", err)
		return nil
	}

	slog.Info("object ingested", "bucket", n.Bucket, "key", key, "task_id", taskId, "labels", names)

	return nil
}
