package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/facesort/internal/annotate"
	"github.com/andresmejia3/facesort/internal/config"
	"github.com/andresmejia3/facesort/internal/pipeline"
)

func defaultSortOptions(t *testing.T) sortOptions {
	t.Helper()
	// No settings file and no environment, so only flags apply.
	for _, env := range []string{"FACESORT_ENDPOINT", "FACESORT_KEY", "FACESORT_PROVIDER", "FACESORT_REGION"} {
		t.Setenv(env, "")
	}
	return sortOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.json"),
		Stroke:     annotate.DefaultStyle.Stroke,
		Quality:    annotate.DefaultStyle.Quality,
		NoProgress: true,
	}
}

func writeJPEG(t *testing.T, path string, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, width, 24)), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateSortFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    sortOptions
		wantErr bool
	}{
		{name: "Valid options", opts: sortOptions{Quality: 90, Stroke: 5}},
		{name: "Quality too low", opts: sortOptions{Quality: 0, Stroke: 5}, wantErr: true},
		{name: "Quality too high", opts: sortOptions{Quality: 101, Stroke: 5}, wantErr: true},
		{name: "Zero stroke", opts: sortOptions{Quality: 90, Stroke: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateSortFlags(tt.opts); (err != nil) != tt.wantErr {
				t.Errorf("validateSortFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSettingsFlagsOverrideFile(t *testing.T) {
	opts := defaultSortOptions(t)
	dir := t.TempDir()
	opts.ConfigPath = filepath.Join(dir, "appsettings.json")

	file := config.Settings{Endpoint: "https://file.example", Key: "file-key", SourceDir: "/photos"}
	data, _ := json.Marshal(file)
	if err := os.WriteFile(opts.ConfigPath, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACESORT_KEY", "env-key")
	opts.Endpoint = "https://flag.example"

	s, err := loadSettings(opts)
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	if s.Endpoint != "https://flag.example" {
		t.Errorf("Endpoint = %q, flag must win", s.Endpoint)
	}
	if s.Key != "env-key" {
		t.Errorf("Key = %q, env must override the file", s.Key)
	}
	if s.PeopleDir != filepath.Join("/photos", "PEOPLE") {
		t.Errorf("PeopleDir = %q, want default under the source folder", s.PeopleDir)
	}
}

func TestRunSortSetupFailures(t *testing.T) {
	t.Run("Missing credentials", func(t *testing.T) {
		opts := defaultSortOptions(t)
		opts.SourceDir = t.TempDir()
		code, err := runSort(context.Background(), opts)
		if err == nil || code != pipeline.ExitSetup {
			t.Errorf("Expected setup failure, got code=%d err=%v", code, err)
		}
		var shown shownError
		if !errors.As(err, &shown) {
			t.Errorf("Setup errors must be marked as already shown, got %T", err)
		}
	})

	t.Run("Missing source folder", func(t *testing.T) {
		opts := defaultSortOptions(t)
		opts.SourceDir = filepath.Join(t.TempDir(), "nope")
		opts.Endpoint = "https://vision.example"
		opts.Key = "k"
		code, err := runSort(context.Background(), opts)
		if err == nil || code != pipeline.ExitSetup {
			t.Errorf("Expected setup failure, got code=%d err=%v", code, err)
		}
	})

	t.Run("Malformed settings file", func(t *testing.T) {
		opts := defaultSortOptions(t)
		opts.ConfigPath = filepath.Join(t.TempDir(), "appsettings.json")
		if err := os.WriteFile(opts.ConfigPath, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := runSort(context.Background(), opts); err == nil {
			t.Error("Expected error for a malformed settings file")
		}
	})
}

// TestRunSortEndToEnd drives the whole command against a fake Azure endpoint.
func TestRunSortEndToEnd(t *testing.T) {
	src := t.TempDir()
	withFaces := writeJPEG(t, filepath.Join(src, "a.jpg"), 32)
	landscape := writeJPEG(t, filepath.Join(src, "b.jpg"), 40)
	writeJPEG(t, filepath.Join(src, "c.jpg"), 48)

	responses := map[string]string{
		string(withFaces): `{"description":{"captions":[{"text":"two people"}]},"faces":[{"faceRectangle":{"left":2,"top":2,"width":8,"height":8}}]}`,
		string(landscape): `{"description":{"captions":[{"text":"a beach"}]},"faces":[]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		resp, ok := responses[string(body)]
		if !ok {
			resp = `{"description":{"captions":[]},"faces":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, resp)
	}))
	defer srv.Close()

	opts := defaultSortOptions(t)
	opts.SourceDir = src
	opts.Endpoint = srv.URL
	opts.Key = "test-key"
	opts.CreateDirs = true

	code, err := runSort(context.Background(), opts)
	if err != nil {
		t.Fatalf("runSort failed: %v", err)
	}
	if code != pipeline.ExitOK {
		t.Errorf("exit code = %d, want %d", code, pipeline.ExitOK)
	}

	people, _ := os.ReadDir(filepath.Join(src, "PEOPLE"))
	if len(people) != 1 || !strings.HasSuffix(people[0].Name(), "-two people.jpg") {
		t.Errorf("Unexpected PEOPLE contents %v", people)
	}
	notPeople, _ := os.ReadDir(filepath.Join(src, "NOT PEOPLE"))
	if len(notPeople) != 1 || !strings.HasSuffix(notPeople[0].Name(), "-a beach.jpg") {
		t.Fatalf("Unexpected NOT PEOPLE contents %v", notPeople)
	}
	copied, _ := os.ReadFile(filepath.Join(src, "NOT PEOPLE", notPeople[0].Name()))
	if !bytes.Equal(copied, landscape) {
		t.Error("NOT PEOPLE copy must be byte-identical to the source")
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, showError("Invalid settings", errors.New("missing key"), ""))
	if buf.Len() != 0 {
		t.Errorf("Error already shown in a box was printed again: %q", buf.String())
	}

	reportError(&buf, errors.New("unknown flag: --bogus"))
	if got := buf.String(); strings.Count(got, "unknown flag") != 1 {
		t.Errorf("Unreported error must be printed once, got %q", got)
	}
}

func TestResolveDBURL(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	if got := resolveDBURL(""); got != "" {
		t.Errorf("Expected no journal without flag or env, got %q", got)
	}
	if got := resolveDBURL("postgres://x"); got != "postgres://x" {
		t.Errorf("Flag must win, got %q", got)
	}

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "facesort")
	t.Setenv("POSTGRES_PORT", "")
	if got, want := resolveDBURL(""), "postgres://u:p@db:5432/facesort"; got != want {
		t.Errorf("resolveDBURL() = %q, want %q", got, want)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		r := bufio.NewReader(strings.NewReader(tt.input))
		if got := confirm(r, io.Discard, "Sure?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
