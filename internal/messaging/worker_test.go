package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"photoshare-backend/internal/ingest"
	"photoshare-backend/internal/records"
	"photoshare-backend/internal/vision"
	"photoshare-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedTask struct {
	payload  []byte
	acked    bool
	nacked   bool
	rejected bool
}

func (t *recordedTask) Payload() []byte { return t.payload }
func (t *recordedTask) Ack() error      { t.acked = true; return nil }
func (t *recordedTask) Nack() error     { t.nacked = true; return nil }
func (t *recordedTask) Reject() error   { t.rejected = true; return nil }

type stubTagger struct{ err error }

func (s *stubTagger) TagObject(ctx context.Context, bucket, key string, tags map[string]string) error {
	return s.err
}

type stubClassifier struct {
	labels []vision.Label
	err    error
}

func (s *stubClassifier) DetectLabels(ctx context.Context, bucket, key string, maxLabels int, minConfidence float64) ([]vision.Label, error) {
	return s.labels, s.err
}

func TestParseNotificationsS3EventShape(t *testing.T) {
	payload := []byte(`{
		"Records": [
			{"s3": {"bucket": {"name": "photos"}, "object": {"key": "alice/t1/cat%20pic.jpg"}}},
			{"s3": {"bucket": {"name": "photos"}, "object": {"key": "bob/t2/dog.jpg"}}}
		]
	}`)

	notifications, err := parseNotifications(payload)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	// Keys stay escaped here, the pipeline owns unescaping.
	assert.Equal(t, ingest.Notification{Bucket: "photos", Key: "alice/t1/cat%20pic.jpg"}, notifications[0])
	assert.Equal(t, ingest.Notification{Bucket: "photos", Key: "bob/t2/dog.jpg"}, notifications[1])
}

func TestParseNotificationsCompactShape(t *testing.T) {
	payload, err := json.Marshal(models.ObjectCreatedPayload{Bucket: "photos", Key: "alice/t1/cat.jpg"})
	require.NoError(t, err)

	notifications, err := parseNotifications(payload)
	require.NoError(t, err)
	require.Equal(t, []ingest.Notification{{Bucket: "photos", Key: "alice/t1/cat.jpg"}}, notifications)
}

func TestParseNotificationsRejectsGarbage(t *testing.T) {
	_, err := parseNotifications([]byte("not json"))
	assert.Error(t, err)

	_, err = parseNotifications([]byte(`{"bucket": "photos"}`))
	assert.Error(t, err)
}

func TestWorkerAcksSuccessfulTask(t *testing.T) {
	store := records.NewMemoryStore()
	pipeline := ingest.NewPipeline(&stubTagger{}, &stubClassifier{labels: []vision.Label{{Name: "Cat", Confidence: 0.9}}}, store)
	worker := NewWorker(pipeline, NewInMemoryQueue(), 1)

	task := &recordedTask{payload: []byte(`{"bucket": "photos", "key": "alice/t1/cat.jpg"}`)}
	worker.process(context.Background(), task)

	assert.True(t, task.acked)
	assert.False(t, task.nacked)
	assert.False(t, task.rejected)

	record, err := store.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []string{"Cat"}, record.Labels)
}

func TestWorkerRejectsMalformedKey(t *testing.T) {
	store := records.NewMemoryStore()
	pipeline := ingest.NewPipeline(&stubTagger{}, &stubClassifier{}, store)
	worker := NewWorker(pipeline, NewInMemoryQueue(), 1)

	task := &recordedTask{payload: []byte(`{"bucket": "photos", "key": "no-segments.jpg"}`)}
	worker.process(context.Background(), task)

	assert.True(t, task.rejected)
	assert.False(t, task.acked)
	assert.False(t, task.nacked)
}

func TestWorkerRejectsUnparseablePayload(t *testing.T) {
	pipeline := ingest.NewPipeline(&stubTagger{}, &stubClassifier{}, records.NewMemoryStore())
	worker := NewWorker(pipeline, NewInMemoryQueue(), 1)

	task := &recordedTask{payload: []byte("not json")}
	worker.process(context.Background(), task)

	assert.True(t, task.rejected)
	assert.False(t, task.acked)
}

func TestWorkerNacksClassifierFailure(t *testing.T) {
	pipeline := ingest.NewPipeline(&stubTagger{}, &stubClassifier{err: errors.New("throttled")}, records.NewMemoryStore())
	worker := NewWorker(pipeline, NewInMemoryQueue(), 1)

	task := &recordedTask{payload: []byte(`{"bucket": "photos", "key": "alice/t1/cat.jpg"}`)}
	worker.process(context.Background(), task)

	assert.True(t, task.nacked)
	assert.False(t, task.acked)
	assert.False(t, task.rejected)
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	store := records.NewMemoryStore()
	pipeline := ingest.NewPipeline(&stubTagger{}, &stubClassifier{labels: []vision.Label{{Name: "Cat", Confidence: 0.9}}}, store)

	queue := NewInMemoryQueue()
	require.NoError(t, queue.PublishObjectCreated(context.Background(), models.ObjectCreatedPayload{Bucket: "photos", Key: "alice/t1/cat.jpg"}))
	require.NoError(t, queue.PublishObjectCreated(context.Background(), models.ObjectCreatedPayload{Bucket: "photos", Key: "bob/t2/dog.jpg"}))
	queue.Close()

	worker := NewWorker(pipeline, queue, 2)
	worker.Run(context.Background())

	for _, taskId := range []string{"t1", "t2"} {
		record, err := store.GetTask(context.Background(), taskId)
		require.NoError(t, err)
		require.NotNil(t, record, "task %s", taskId)
	}
}
