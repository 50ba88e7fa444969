package vision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// RekognitionAPI is the subset of the Rekognition client the classifier uses.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionClassifier classifies images in place via DetectLabels on an
// S3 object reference, no image bytes pass through this process.
type RekognitionClassifier struct {
	client RekognitionAPI
}

var _ Classifier = (*RekognitionClassifier)(nil)

func NewRekognitionClassifier(region string) (*RekognitionClassifier, error) {
	opts := []func(*aws_config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, aws_config.WithRegion(region))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	return &RekognitionClassifier{client: rekognition.NewFromConfig(awsCfg)}, nil
}

func NewRekognitionClassifierFromAPI(client RekognitionAPI) *RekognitionClassifier {
	return &RekognitionClassifier{client: client}
}

func (c *RekognitionClassifier) DetectLabels(ctx context.Context, bucket, key string, maxLabels int, minConfidence float64) ([]Label, error) {
	out, err := c.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		MaxLabels: aws.Int32(int32(maxLabels)),
		// Rekognition confidences are percentages.
		MinConfidence: aws.Float32(float32(minConfidence * 100)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect labels for s3://%s/%s: %w", bucket, key, err)
	}

	labels := make([]Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)) / 100,
		})
	}

	return labels, nil
}
