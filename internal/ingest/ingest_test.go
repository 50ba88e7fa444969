package ingest_test

import (
	"context"
	"errors"
	"testing"

	"photoshare-backend/internal/ingest"
	"photoshare-backend/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagCall struct {
	bucket, key string
	tags        map[string]string
}

type mockTagger struct {
	calls []tagCall
	err   error
}

func (m *mockTagger) TagObject(ctx context.Context, bucket, key string, tags map[string]string) error {
	m.calls = append(m.calls, tagCall{bucket: bucket, key: key, tags: tags})
	return m.err
}

type classifyCall struct {
	bucket, key   string
	maxLabels     int
	minConfidence float64
}

type mockClassifier struct {
	calls  []classifyCall
	labels []vision.Label
	err    error
}

func (m *mockClassifier) DetectLabels(ctx context.Context, bucket, key string, maxLabels int, minConfidence float64) ([]vision.Label, error) {
	m.calls = append(m.calls, classifyCall{bucket: bucket, key: key, maxLabels: maxLabels, minConfidence: minConfidence})
	return m.labels, m.err
}

type updateCall struct {
	taskId, user string
	labels       []string
}

type mockTasks struct {
	calls []updateCall
	err   error
}

func (m *mockTasks) UpdateTask(ctx context.Context, taskId, user string, labels []string) error {
	m.calls = append(m.calls, updateCall{taskId: taskId, user: user, labels: labels})
	return m.err
}

func newPipeline(tagger *mockTagger, classifier *mockClassifier, tasks *mockTasks) *ingest.Pipeline {
	return ingest.NewPipeline(tagger, classifier, tasks)
}

func TestHandleExtractsUserAndTaskId(t *testing.T) {
	tagger, classifier, tasks := &mockTagger{}, &mockClassifier{}, &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{
		Bucket: "photos",
		Key:    "alice/task-1/some/nested/photo.jpg",
	})
	require.NoError(t, err)

	require.Len(t, tagger.calls, 1)
	assert.Equal(t, "photos", tagger.calls[0].bucket)
	assert.Equal(t, "alice/task-1/some/nested/photo.jpg", tagger.calls[0].key)
	assert.Equal(t, map[string]string{"user": "alice", "task_id": "task-1"}, tagger.calls[0].tags)

	require.Len(t, tasks.calls, 1)
	assert.Equal(t, "task-1", tasks.calls[0].taskId)
	assert.Equal(t, "alice", tasks.calls[0].user)
}

func TestHandleUnescapesObjectKey(t *testing.T) {
	tagger, classifier, tasks := &mockTagger{}, &mockClassifier{}, &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{
		Bucket: "photos",
		Key:    "alice/task-1/my+cat%20photo.jpg",
	})
	require.NoError(t, err)

	require.Len(t, tagger.calls, 1)
	assert.Equal(t, "alice/task-1/my cat photo.jpg", tagger.calls[0].key)
	require.Len(t, classifier.calls, 1)
	assert.Equal(t, "alice/task-1/my cat photo.jpg", classifier.calls[0].key)
}

func TestHandleMalformedKeyHasNoSideEffects(t *testing.T) {
	for _, key := range []string{"photo.jpg", "", "%zz"} {
		tagger, classifier, tasks := &mockTagger{}, &mockClassifier{}, &mockTasks{}
		pipeline := newPipeline(tagger, classifier, tasks)

		err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: key})
		require.ErrorIs(t, err, ingest.ErrMalformedKey, "key %q", key)

		assert.Empty(t, tagger.calls, "key %q", key)
		assert.Empty(t, classifier.calls, "key %q", key)
		assert.Empty(t, tasks.calls, "key %q", key)
	}
}

func TestHandleSetsLabelsInClassifierOrder(t *testing.T) {
	tagger := &mockTagger{}
	classifier := &mockClassifier{labels: []vision.Label{
		{Name: "Dog", Confidence: 0.99},
		{Name: "Pet", Confidence: 0.91},
		{Name: "Animal", Confidence: 0.80},
	}}
	tasks := &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: "bob/t2/dog.jpg"})
	require.NoError(t, err)

	require.Len(t, classifier.calls, 1)
	assert.Equal(t, 5, classifier.calls[0].maxLabels)
	assert.Equal(t, 0.75, classifier.calls[0].minConfidence)

	require.Len(t, tasks.calls, 1)
	assert.Equal(t, []string{"Dog", "Pet", "Animal"}, tasks.calls[0].labels)
}

func TestHandleEmptyClassification(t *testing.T) {
	tagger, classifier, tasks := &mockTagger{}, &mockClassifier{}, &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: "bob/t2/blank.jpg"})
	require.NoError(t, err)

	require.Len(t, tasks.calls, 1)
	assert.Empty(t, tasks.calls[0].labels)
}

func TestHandleTaggingFailureAbortsBeforeClassification(t *testing.T) {
	tagger := &mockTagger{err: errors.New("access denied")}
	classifier, tasks := &mockClassifier{}, &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: "alice/t1/cat.jpg"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrMalformedKey)

	assert.Empty(t, classifier.calls)
	assert.Empty(t, tasks.calls)
}

func TestHandleClassifierFailurePropagates(t *testing.T) {
	tagger := &mockTagger{}
	classifier := &mockClassifier{err: errors.New("throttled")}
	tasks := &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: "alice/t1/cat.jpg"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrMalformedKey)

	// Tags were written before the failure, the record was never touched.
	assert.Len(t, tagger.calls, 1)
	assert.Empty(t, tasks.calls)
}

func TestHandleRecordUpdateFailureIsSwallowed(t *testing.T) {
	tagger, classifier := &mockTagger{}, &mockClassifier{labels: []vision.Label{{Name: "Cat", Confidence: 0.95}}}
	tasks := &mockTasks{err: errors.New("table unavailable")}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{Bucket: "photos", Key: "alice/t1/cat.jpg"})
	require.NoError(t, err)

	assert.Len(t, tagger.calls, 1)
	assert.Len(t, tasks.calls, 1)
}

func TestHandleEndToEnd(t *testing.T) {
	tagger := &mockTagger{}
	classifier := &mockClassifier{labels: []vision.Label{
		{Name: "Cat", Confidence: 0.95},
		{Name: "Animal", Confidence: 0.80},
	}}
	tasks := &mockTasks{}
	pipeline := newPipeline(tagger, classifier, tasks)

	err := pipeline.Handle(context.Background(), ingest.Notification{
		Bucket: "b",
		Key:    "alice/123e4567-e89b-12d3-a456-426614174000/cat.jpg",
	})
	require.NoError(t, err)

	require.Len(t, tagger.calls, 1)
	assert.Equal(t, map[string]string{
		"user":    "alice",
		"task_id": "123e4567-e89b-12d3-a456-426614174000",
	}, tagger.calls[0].tags)

	require.Len(t, tasks.calls, 1)
	assert.Equal(t, updateCall{
		taskId: "123e4567-e89b-12d3-a456-426614174000",
		user:   "alice",
		labels: []string{"Cat", "Animal"},
	}, tasks.calls[0])
}
