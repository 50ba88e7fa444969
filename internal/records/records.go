package records

import (
	"context"
)

const (
	// Key prefixes for post records, e.g. user "USER#alice", id "POST#<uuid>".
	PostKeyPrefix = "POST#"
	UserKeyPrefix = "USER#"
)

// Post is a post record as stored in the posts table, keyed by {user, id}.
type Post struct {
	User      string `dynamodbav:"user"`
	Id        string `dynamodbav:"id"`
	Title     string `dynamodbav:"title"`
	Body      string `dynamodbav:"body"`
	Key       string `dynamodbav:"key,omitempty"`
	CreatedAt string `dynamodbav:"createdAt,omitempty"`
}

// TaskRecord is the record enriched by the ingestion pipeline, keyed by {id}.
// Id is the task id embedded in the object key, normally the post's bare uuid.
type TaskRecord struct {
	Id     string   `dynamodbav:"id"`
	User   string   `dynamodbav:"user"`
	Labels []string `dynamodbav:"labels"`
}

type Store interface {
	PutPost(ctx context.Context, post Post) error

	// PostsByUser returns the posts whose partition key equals user and whose
	// id carries the post prefix.
	PostsByUser(ctx context.Context, user string) ([]Post, error)

	// AllPosts returns every post record in the table, regardless of owner.
	AllPosts(ctx context.Context) ([]Post, error)

	// FindPostById locates a post by its id alone. Returns nil when no record
	// matches.
	FindPostById(ctx context.Context, id string) (*Post, error)

	DeletePost(ctx context.Context, user, id string) error

	// SetPostKey records the object key an upload was presigned for on the
	// post record.
	SetPostKey(ctx context.Context, user, id, key string) error

	// UpdateTask overwrites the task record's user and labels unconditionally.
	// The record is created if the id does not exist yet; concurrent updates
	// for the same id are last write wins.
	UpdateTask(ctx context.Context, taskId, user string, labels []string) error

	// GetTask returns nil when no record exists for the id.
	GetTask(ctx context.Context, taskId string) (*TaskRecord, error)
}
