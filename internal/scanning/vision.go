package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// visionMaxImageBytes keeps the base64 payload under the 10MB JSON request limit
const visionMaxImageBytes = 7 << 20

// Vision implements the Scanner interface using Google Cloud Vision text detection
type Vision struct {
	service *vision.Service
	timeout time.Duration
}

// NewVision creates a Cloud Vision scanner authenticated with an API key.
// Extra client options (endpoint, HTTP client) are passed through.
func NewVision(apiKey string, opts ...option.ClientOption) (*Vision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := vision.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{
		service: service,
		timeout: 30 * time.Second,
	}, nil
}

// ExtractText runs DOCUMENT_TEXT_DETECTION and returns the full text annotation
func (v *Vision) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	img, err := prepareImage(imageData, contentType)
	if err != nil {
		return "", err
	}
	if img, err = fitImage(img, visionMaxImageBytes); err != nil {
		return "", err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image: &vision.Image{
					Content: base64.StdEncoding.EncodeToString(img.Data),
				},
				Features: []*vision.Feature{
					{Type: "DOCUMENT_TEXT_DETECTION"},
				},
			},
		},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calling vision API: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("no response from vision")
	}

	annotation := resp.Responses[0]
	if annotation.Error != nil && annotation.Error.Code != 0 {
		return "", fmt.Errorf("vision API error (code %d): %s", annotation.Error.Code, annotation.Error.Message)
	}

	var text string
	switch {
	case annotation.FullTextAnnotation != nil:
		text = annotation.FullTextAnnotation.Text
	case len(annotation.TextAnnotations) > 0:
		// First entry holds the whole detected text block
		text = annotation.TextAnnotations[0].Description
	}

	return cleanTranscript(text)
}

// Close is a no-op; the Vision service holds no open connections of its own
func (v *Vision) Close() error {
	return nil
}
