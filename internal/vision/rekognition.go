package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"

	"github.com/andresmejia3/facesort/internal/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rtypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

const rekognitionMaxLabels = 5

// rekognitionAPI is the part of the Rekognition client this package calls,
// narrowed so tests can substitute a fake.
type rekognitionAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionAnalyzer uses AWS Rekognition face and label detection. The top
// label is used as the caption.
type RekognitionAnalyzer struct {
	client rekognitionAPI
}

// NewRekognition loads the default AWS credential chain. region and endpoint
// are optional overrides.
func NewRekognition(ctx context.Context, region, endpoint string) (*RekognitionAnalyzer, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := rekognition.NewFromConfig(cfg, func(o *rekognition.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &RekognitionAnalyzer{client: client}, nil
}

func (r *RekognitionAnalyzer) Analyze(ctx context.Context, data []byte) (types.AnalysisResult, error) {
	var result types.AnalysisResult

	img := &rtypes.Image{Bytes: data}
	faces, err := r.client.DetectFaces(ctx, &rekognition.DetectFacesInput{Image: img})
	if err != nil {
		return result, fmt.Errorf("detect faces: %w", err)
	}
	labels, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:     img,
		MaxLabels: aws.Int32(rekognitionMaxLabels),
	})
	if err != nil {
		return result, fmt.Errorf("detect labels: %w", err)
	}

	if len(faces.FaceDetails) > 0 {
		// Rekognition boxes are ratios of the image size.
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return result, fmt.Errorf("read image dimensions: %w", err)
		}
		for _, fd := range faces.FaceDetails {
			if fd.BoundingBox == nil {
				continue
			}
			result.Faces = append(result.Faces, scaleBox(fd.BoundingBox, cfg.Width, cfg.Height))
		}
	}

	names := make([]string, 0, len(labels.Labels))
	for _, l := range labels.Labels {
		if name := aws.ToString(l.Name); name != "" {
			names = append(names, name)
		}
	}
	result.Caption, result.HasCaption = firstCaption(names)
	return result, nil
}

func scaleBox(b *rtypes.BoundingBox, width, height int) types.Rectangle {
	scale := func(v *float32, size int) int {
		return int(math.Round(float64(aws.ToFloat32(v)) * float64(size)))
	}
	return types.Rectangle{
		Left:   scale(b.Left, width),
		Top:    scale(b.Top, height),
		Width:  scale(b.Width, width),
		Height: scale(b.Height, height),
	}
}

func (r *RekognitionAnalyzer) Close() error { return nil }
