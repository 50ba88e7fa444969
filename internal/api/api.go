package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"photoshare-backend/internal/records"
	"photoshare-backend/internal/storage"
	"photoshare-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PostingService exposes the post CRUD surface over the record store and the
// object store. All handles are process-wide and read-only after creation.
type PostingService struct {
	records    records.Store
	objects    storage.ObjectStore
	bucket     string
	presignTTL time.Duration
}

func NewPostingService(recordStore records.Store, objects storage.ObjectStore, bucket string, presignTTL time.Duration) *PostingService {
	return &PostingService{
		records:    recordStore,
		objects:    objects,
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

func (s *PostingService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/posts", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreatePost))
		r.Get("/", RestHandler(s.ListPosts))
		r.Delete("/{post_id}", RestHandler(s.DeletePost))
	})
	r.Get("/signedUrlPut", RestHandler(s.SignedUploadURL))
}

// callerIdentity returns the caller's identity token. The token is trusted
// verbatim, there is no verification layer in front of this service.
func callerIdentity(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", CodedErrorf(http.StatusUnauthorized, "Authorization header missing")
	}
	return auth, nil
}

func (s *PostingService) CreatePost(r *http.Request) (any, error) {
	user, err := callerIdentity(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.CreatePostRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Title == "" || req.Body == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "title and body are required")
	}

	post := records.Post{
		User:      records.UserKeyPrefix + user,
		Id:        records.PostKeyPrefix + uuid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	ctx := r.Context()
	if err := s.records.PutPost(ctx, post); err != nil {
		slog.Error("error creating post", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create post")
	}

	slog.Info("post created", "id", post.Id, "user", post.User)
	return s.toApiPost(r, post), nil
}

func (s *PostingService) ListPosts(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ListPostsQuery](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	var posts []records.Post
	if query.User != "" {
		posts, err = s.records.PostsByUser(ctx, records.UserKeyPrefix+query.User)
	} else {
		posts, err = s.records.AllPosts(ctx)
	}
	if err != nil {
		slog.Error("error listing posts", "user", query.User, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list posts")
	}

	response := make([]api.Post, 0, len(posts))
	for _, post := range posts {
		response = append(response, s.toApiPost(r, post))
	}

	return response, nil
}

func (s *PostingService) DeletePost(r *http.Request) (any, error) {
	user, err := callerIdentity(r)
	if err != nil {
		return nil, err
	}

	postId, err := URLParam(r, "post_id")
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	post, err := s.records.FindPostById(ctx, records.PostKeyPrefix+postId)
	if err != nil {
		slog.Error("error looking up post", "post_id", postId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to look up post")
	}
	if post == nil {
		return nil, CodedErrorf(http.StatusNotFound, "post not found")
	}

	if post.User != records.UserKeyPrefix+user {
		return nil, CodedErrorf(http.StatusForbidden, "not allowed to delete this post")
	}

	// Remove the image first so the record never points at a dangling object
	// while an orphaned object is merely wasted space.
	if post.Key != "" {
		if err := s.objects.DeleteObject(ctx, s.bucket, post.Key); err != nil {
			slog.Warn("failed to delete post image", "post_id", post.Id, "key", post.Key, "error", err)
		}
	}

	if err := s.records.DeletePost(ctx, post.User, post.Id); err != nil {
		slog.Error("error deleting post", "post_id", post.Id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to delete post")
	}

	slog.Info("post deleted", "id", post.Id, "user", post.User)
	return s.toApiPost(r, *post), nil
}

func (s *PostingService) SignedUploadURL(r *http.Request) (any, error) {
	user, err := callerIdentity(r)
	if err != nil {
		return nil, err
	}

	query, err := ParseRequestQueryParams[api.SignedUploadQuery](r)
	if err != nil {
		return nil, err
	}
	if query.Filename == "" || query.Filetype == "" || query.PostId == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "filename, filetype and postId are required")
	}

	// Canonical object key: the ingestion pipeline derives user and task id
	// from the first two path segments.
	taskId := strings.TrimPrefix(query.PostId, records.PostKeyPrefix)
	key := user + "/" + taskId + "/" + query.Filename

	ctx := r.Context()

	url, err := s.objects.PresignPutObject(ctx, s.bucket, key, query.Filetype, s.presignTTL)
	if err != nil {
		slog.Error("error presigning upload", "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to presign upload")
	}

	if err := s.records.SetPostKey(ctx, records.UserKeyPrefix+user, records.PostKeyPrefix+taskId, key); err != nil {
		slog.Error("error recording object key on post", "post_id", query.PostId, "key", key, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to record upload key")
	}

	slog.Info("upload presigned", "user", user, "key", key)
	return api.SignedUploadResponse{URL: url, Key: key}, nil
}

// toApiPost shapes a record for the wire, attaching a presigned download URL
// when an image has been uploaded and the labels the ingestion pipeline wrote
// for the post's task id. Enrichment failures degrade the response rather
// than fail the request.
func (s *PostingService) toApiPost(r *http.Request, post records.Post) api.Post {
	ctx := r.Context()

	out := api.Post{
		Id:     post.Id,
		User:   post.User,
		Title:  post.Title,
		Body:   post.Body,
		Labels: []string{},
	}

	if post.Key != "" {
		url, err := s.objects.PresignGetObject(ctx, s.bucket, post.Key, s.presignTTL)
		if err != nil {
			slog.Warn("failed to presign post image", "post_id", post.Id, "key", post.Key, "error", err)
		} else {
			out.Image = &url
		}
	}

	taskId := strings.TrimPrefix(post.Id, records.PostKeyPrefix)
	task, err := s.records.GetTask(ctx, taskId)
	if err != nil {
		slog.Warn("failed to load task record for post", "post_id", post.Id, "error", err)
	} else if task != nil && task.Labels != nil {
		out.Labels = task.Labels
	}

	return out
}
