package vision

import (
	"context"
)

// Label is one classification result. Confidence is normalized to [0, 1].
type Label struct {
	Name       string
	Confidence float64
}

// Classifier returns labels for a stored image, best match first. maxLabels
// caps the number of results and minConfidence (in [0, 1]) filters weak ones.
type Classifier interface {
	DetectLabels(ctx context.Context, bucket, key string, maxLabels int, minConfidence float64) ([]Label, error)
}
