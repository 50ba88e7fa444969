package storage

import (
	"context"
	"io"
	"time"
)

type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	DeleteObject(ctx context.Context, bucket, key string) error

	// TagObject replaces the object's tag set with the given tags.
	TagObject(ctx context.Context, bucket, key string, tags map[string]string) error

	GetObjectTags(ctx context.Context, bucket, key string) (map[string]string, error)

	// PresignGetObject returns a URL granting read access to the object until
	// the expiry elapses.
	PresignGetObject(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	// PresignPutObject returns a URL granting write access for a single upload
	// with the given content type.
	PresignPutObject(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error)
}
