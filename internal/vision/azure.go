package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andresmejia3/facesort/internal/types"
)

const (
	azureAnalyzePath = "/vision/v3.2/analyze"
	azureFeatures    = "Description,Faces"
	azureKeyHeader   = "Ocp-Apim-Subscription-Key"

	// azureMaxResponse caps how much of a response body is read.
	azureMaxResponse = 4 << 20
)

// AzureAnalyzer calls the Azure AI Vision "analyze" REST operation.
type AzureAnalyzer struct {
	analyzeURL string
	key        string
	client     *http.Client
}

// NewAzure creates an analyzer for the given Cognitive Services endpoint.
// A nil client gets a default one with a 60s timeout.
func NewAzure(endpoint, key string, client *http.Client) (*AzureAnalyzer, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("%w: azure needs endpoint and key", ErrMissingCredentials)
	}
	base, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid azure endpoint %q", endpoint)
	}
	base.Path += azureAnalyzePath
	base.RawQuery = url.Values{"visualFeatures": {azureFeatures}}.Encode()

	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &AzureAnalyzer{analyzeURL: base.String(), key: key, client: client}, nil
}

type azureAnalysis struct {
	Description *struct {
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
	Faces []struct {
		FaceRectangle types.Rectangle `json:"faceRectangle"`
	} `json:"faces"`
}

// azureErrorBody covers both the nested v3 error shape and the flat legacy one.
type azureErrorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *AzureAnalyzer) Analyze(ctx context.Context, image []byte) (types.AnalysisResult, error) {
	var result types.AnalysisResult

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.analyzeURL, bytes.NewReader(image))
	if err != nil {
		return result, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(azureKeyHeader, a.key)

	resp, err := a.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, azureMaxResponse))
	if err != nil {
		return result, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, parseAzureError(resp.StatusCode, body)
	}

	var analysis azureAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}

	for _, f := range analysis.Faces {
		result.Faces = append(result.Faces, f.FaceRectangle)
	}
	if analysis.Description != nil {
		texts := make([]string, 0, len(analysis.Description.Captions))
		for _, c := range analysis.Description.Captions {
			texts = append(texts, c.Text)
		}
		result.Caption, result.HasCaption = firstCaption(texts)
	}
	return result, nil
}

func parseAzureError(status int, body []byte) error {
	svcErr := &ServiceError{Provider: "azure", StatusCode: status, Message: http.StatusText(status)}

	var parsed azureErrorBody
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != nil:
			svcErr.Code, svcErr.Message = parsed.Error.Code, parsed.Error.Message
		case parsed.Code != "" || parsed.Message != "":
			svcErr.Code, svcErr.Message = parsed.Code, parsed.Message
		}
	}
	return svcErr
}

func (a *AzureAnalyzer) Close() error { return nil }
