package api

type CreatePostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Post is the wire representation of a post record. Image is a presigned
// download URL and is null when no image has been uploaded for the post yet.
type Post struct {
	Id     string   `json:"id"`
	User   string   `json:"user"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Image  *string  `json:"image"`
	Labels []string `json:"labels"`
}

type ListPostsQuery struct {
	User string `schema:"user"`
}

type SignedUploadQuery struct {
	Filename string `schema:"filename"`
	Filetype string `schema:"filetype"`
	PostId   string `schema:"postId"`
}

// SignedUploadResponse carries the presigned PUT url along with the canonical
// object key the client must upload to, of the form user/task_id/filename.
type SignedUploadResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}
