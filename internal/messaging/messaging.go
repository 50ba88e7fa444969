package messaging

import (
	"context"
	"time"

	"photoshare-backend/pkg/models"
)

const (
	DefaultNotificationsQueue = "object_created_queue"
	RetryDelay                = 5 * time.Second
	MaxConnectRetry           = 5
)

// Task is one delivery from the notifications queue. Ack marks it handled,
// Nack leaves redelivery to the broker's dead-letter setup, Reject discards
// it outright (malformed or non-retryable).
type Task interface {
	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type Publisher interface {
	PublishObjectCreated(ctx context.Context, payload models.ObjectCreatedPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
