// Package vision adapts cloud image-analysis services to a single Analyzer
// interface returning face rectangles and an optional caption.
package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/facesort/internal/config"
	"github.com/andresmejia3/facesort/internal/types"
)

// ErrMissingCredentials is returned when a backend needs an endpoint or key
// that the settings do not provide.
var ErrMissingCredentials = errors.New("missing vision service credentials")

// Analyzer requests description and face detection for one image.
type Analyzer interface {
	// Analyze returns faces in service order and the first caption, if any.
	Analyze(ctx context.Context, image []byte) (types.AnalysisResult, error)
	Close() error
}

// ServiceError is a non-success response reported by a vision service.
type ServiceError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s vision error (HTTP %d) %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s vision error %s: %s", e.Provider, e.Code, e.Message)
}

// New builds the Analyzer selected by s.Provider.
func New(ctx context.Context, s config.Settings) (Analyzer, error) {
	var (
		a   Analyzer
		err error
	)
	// Each constructor returns a concrete pointer; only assign on success so
	// a failed build never yields a non-nil interface.
	switch s.Provider {
	case config.ProviderAzure, "":
		var az *AzureAnalyzer
		if az, err = NewAzure(s.Endpoint, s.Key, nil); err == nil {
			a = az
		}
	case config.ProviderGoogle:
		var g *GoogleAnalyzer
		if g, err = NewGoogle(ctx, s.Endpoint, s.Key); err == nil {
			a = g
		}
	case config.ProviderRekognition:
		var r *RekognitionAnalyzer
		if r, err = NewRekognition(ctx, s.Region, s.Endpoint); err == nil {
			a = r
		}
	default:
		err = fmt.Errorf("unknown vision provider %q", s.Provider)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// firstCaption applies the caption rule shared by every backend: take the
// first candidate, absent when there are none.
func firstCaption(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0], true
}
