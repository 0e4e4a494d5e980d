package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresmejia3/facesort/internal/types"
)

func newAzureServer(t *testing.T, status int, body string) (*httptest.Server, *[]byte) {
	t.Helper()
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != azureAnalyzePath {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("visualFeatures"); got != azureFeatures {
			t.Errorf("visualFeatures = %q, want %q", got, azureFeatures)
		}
		if got := r.Header.Get(azureKeyHeader); got != "test-key" {
			t.Errorf("subscription key header = %q", got)
		}
		received, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestAzureAnalyzeFacesAndCaption(t *testing.T) {
	srv, received := newAzureServer(t, http.StatusOK, `{
		"description": {"tags": ["dog"], "captions": [
			{"text": "a dog", "confidence": 0.91},
			{"text": "an animal", "confidence": 0.4}
		]},
		"faces": [
			{"age": 30, "faceRectangle": {"left": 10, "top": 20, "width": 30, "height": 40}},
			{"age": 31, "faceRectangle": {"left": 1, "top": 2, "width": 3, "height": 4}}
		]
	}`)

	a, err := NewAzure(srv.URL+"/", "test-key", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Analyze(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xD9})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if string(*received) != string([]byte{0xFF, 0xD8, 0xFF, 0xD9}) {
		t.Errorf("Image bytes were not sent verbatim")
	}

	want := []types.Rectangle{{Left: 10, Top: 20, Width: 30, Height: 40}, {Left: 1, Top: 2, Width: 3, Height: 4}}
	if len(res.Faces) != len(want) {
		t.Fatalf("Expected %d faces, got %d", len(want), len(res.Faces))
	}
	for i := range want {
		if res.Faces[i] != want[i] {
			t.Errorf("face %d = %+v, want %+v (service order must be kept)", i, res.Faces[i], want[i])
		}
	}
	if !res.HasCaption || res.Caption != "a dog" {
		t.Errorf("Caption = %q (present=%v), want first caption", res.Caption, res.HasCaption)
	}
}

func TestAzureAnalyzeNoCaption(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null description", `{"description": null, "faces": []}`},
		{"null captions", `{"description": {"captions": null}, "faces": []}`},
		{"empty captions", `{"description": {"captions": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newAzureServer(t, http.StatusOK, tt.body)
			a, err := NewAzure(srv.URL, "test-key", srv.Client())
			if err != nil {
				t.Fatal(err)
			}
			res, err := a.Analyze(context.Background(), []byte("img"))
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if res.HasCaption {
				t.Errorf("Expected no caption, got %q", res.Caption)
			}
			if len(res.Faces) != 0 {
				t.Errorf("Expected no faces, got %d", len(res.Faces))
			}
		})
	}
}

func TestAzureAnalyzeServiceError(t *testing.T) {
	srv, _ := newAzureServer(t, http.StatusUnauthorized, `{"error": {"code": "401", "message": "Access denied due to invalid subscription key."}}`)
	a, err := NewAzure(srv.URL, "test-key", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Analyze(context.Background(), []byte("img"))
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Expected *ServiceError, got %v", err)
	}
	if svcErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", svcErr.StatusCode)
	}
	if svcErr.Message != "Access denied due to invalid subscription key." {
		t.Errorf("Message = %q", svcErr.Message)
	}
}

func TestAzureAnalyzeLegacyErrorShape(t *testing.T) {
	srv, _ := newAzureServer(t, http.StatusBadRequest, `{"code": "InvalidImageFormat", "message": "Input data is not a valid image."}`)
	a, _ := NewAzure(srv.URL, "test-key", srv.Client())

	_, err := a.Analyze(context.Background(), []byte("img"))
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.Code != "InvalidImageFormat" {
		t.Fatalf("Expected InvalidImageFormat service error, got %v", err)
	}
}

func TestNewAzureRequiresCredentials(t *testing.T) {
	if _, err := NewAzure("", "key", nil); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials for empty endpoint, got %v", err)
	}
	if _, err := NewAzure("https://example.com", "", nil); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials for empty key, got %v", err)
	}
	if _, err := NewAzure("not a url", "key", nil); err == nil {
		t.Error("Expected error for invalid endpoint")
	}
}

func TestAzureAnalyzeOversizedResponse(t *testing.T) {
	// Valid JSON only if read past the cap.
	body := `{"faces": [` + strings.Repeat(" ", azureMaxResponse) + `]}`
	srv, _ := newAzureServer(t, http.StatusOK, body)
	a, _ := NewAzure(srv.URL, "test-key", srv.Client())

	if _, err := a.Analyze(context.Background(), []byte("img")); err == nil {
		t.Error("Expected decode error for a response larger than the cap")
	}
}
