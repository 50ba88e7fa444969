package records

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store with the same observable semantics as the
// DynamoDB implementation, including create-on-update for missing task ids.
// Used by tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	posts map[string]Post // keyed by user + "\x00" + id
	tasks map[string]TaskRecord
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts: make(map[string]Post),
		tasks: make(map[string]TaskRecord),
	}
}

func memKey(user, id string) string {
	return user + "\x00" + id
}

func (s *MemoryStore) PutPost(ctx context.Context, post Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[memKey(post.User, post.Id)] = post
	return nil
}

func (s *MemoryStore) PostsByUser(ctx context.Context, user string) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []Post
	for _, p := range s.posts {
		if p.User == user && strings.HasPrefix(p.Id, PostKeyPrefix) {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *MemoryStore) AllPosts(ctx context.Context) ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []Post
	for _, p := range s.posts {
		if strings.HasPrefix(p.Id, PostKeyPrefix) {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *MemoryStore) FindPostById(ctx context.Context, id string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.posts {
		if p.Id == id {
			post := p
			return &post, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, user, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, memKey(user, id))
	return nil
}

func (s *MemoryStore) SetPostKey(ctx context.Context, user, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Like DynamoDB's UpdateItem, this creates the record if it is missing.
	post := s.posts[memKey(user, id)]
	post.User, post.Id, post.Key = user, id, key
	s.posts[memKey(user, id)] = post
	return nil
}

func (s *MemoryStore) UpdateTask(ctx context.Context, taskId, user string, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskId] = TaskRecord{Id: taskId, User: user, Labels: labels}
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, taskId string) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskId]
	if !ok {
		return nil, nil
	}
	return &task, nil
}
