package messaging

import (
	"context"
	"encoding/json"
	"sync"

	"photoshare-backend/pkg/models"
)

type inMemoryTask struct {
	payload []byte
}

func (t *inMemoryTask) Payload() []byte {
	return t.payload
}

func (t *inMemoryTask) Ack() error {
	return nil
}

func (t *inMemoryTask) Nack() error {
	return nil
}

func (t *inMemoryTask) Reject() error {
	return nil
}

// InMemoryQueue is a broker-less Publisher + Receiver pair for tests and
// local development.
type InMemoryQueue struct {
	tasks chan Task
	once  sync.Once
}

var (
	_ Publisher = (*InMemoryQueue)(nil)
	_ Receiver  = (*InMemoryQueue)(nil)
)

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make(chan Task, 100),
	}
}

func (q *InMemoryQueue) PublishObjectCreated(ctx context.Context, payload models.ObjectCreatedPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.tasks <- &inMemoryTask{payload: data}

	return nil
}

func (q *InMemoryQueue) Tasks() <-chan Task {
	return q.tasks
}

func (q *InMemoryQueue) Close() {
	q.once.Do(func() { close(q.tasks) })
}
