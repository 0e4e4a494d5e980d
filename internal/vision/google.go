package vision

import (
	"context"
	"errors"
	"fmt"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/andresmejia3/facesort/internal/types"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// googleLabelCount bounds how many labels are requested; only the first is used.
const googleLabelCount = 5

// imageAnnotator is the slice of the Cloud Vision client this package uses.
type imageAnnotator interface {
	AnnotateImage(ctx context.Context, req *visionpb.AnnotateImageRequest, opts ...gax.CallOption) (*visionpb.AnnotateImageResponse, error)
	Close() error
}

// batchAnnotator is the Cloud Vision v2 client surface; it only offers batch calls.
type batchAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

var _ batchAnnotator = (*gvision.ImageAnnotatorClient)(nil)

var errEmptyBatch = errors.New("cloud vision returned no response for the image")

// singleAnnotator sends one image as a batch of one.
type singleAnnotator struct {
	batchAnnotator
}

var _ imageAnnotator = singleAnnotator{}

func (s singleAnnotator) AnnotateImage(ctx context.Context, req *visionpb.AnnotateImageRequest, opts ...gax.CallOption) (*visionpb.AnnotateImageResponse, error) {
	resp, err := s.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	}, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.GetResponses()) == 0 {
		return nil, errEmptyBatch
	}
	return resp.GetResponses()[0], nil
}

// GoogleAnalyzer uses Cloud Vision face and label detection. Cloud Vision has
// no caption feature, so the top label stands in for the caption.
type GoogleAnalyzer struct {
	client imageAnnotator
}

// NewGoogle creates a Cloud Vision client. With an empty key, Application
// Default Credentials are used; a non-empty endpoint overrides the API host.
func NewGoogle(ctx context.Context, endpoint, key string) (*GoogleAnalyzer, error) {
	var opts []option.ClientOption
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create cloud vision client: %w", err)
	}
	return &GoogleAnalyzer{client: singleAnnotator{client}}, nil
}

func (g *GoogleAnalyzer) Analyze(ctx context.Context, image []byte) (types.AnalysisResult, error) {
	var result types.AnalysisResult

	resp, err := g.client.AnnotateImage(ctx, &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: image},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_FACE_DETECTION},
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: googleLabelCount},
		},
	})
	if err != nil {
		return result, fmt.Errorf("annotate image: %w", err)
	}
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		return result, &ServiceError{Provider: "google", Code: fmt.Sprint(st.GetCode()), Message: st.GetMessage()}
	}

	for _, face := range resp.GetFaceAnnotations() {
		if rect, ok := polyToRect(face.GetBoundingPoly()); ok {
			result.Faces = append(result.Faces, rect)
		}
	}

	labels := make([]string, 0, len(resp.GetLabelAnnotations()))
	for _, l := range resp.GetLabelAnnotations() {
		labels = append(labels, l.GetDescription())
	}
	result.Caption, result.HasCaption = firstCaption(labels)
	return result, nil
}

// polyToRect returns the axis-aligned bounding box of a polygon's vertices.
func polyToRect(poly *visionpb.BoundingPoly) (types.Rectangle, bool) {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return types.Rectangle{}, false
	}

	minX, minY := vertices[0].GetX(), vertices[0].GetY()
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		minX, maxX = min(minX, v.GetX()), max(maxX, v.GetX())
		minY, maxY = min(minY, v.GetY()), max(maxY, v.GetY())
	}
	return types.Rectangle{
		Left:   int(minX),
		Top:    int(minY),
		Width:  int(maxX - minX),
		Height: int(maxY - minY),
	}, true
}

func (g *GoogleAnalyzer) Close() error {
	return g.client.Close()
}
