// Package config loads the settings file and environment overrides for a run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = "appsettings.json"

const (
	ProviderAzure       = "azure"
	ProviderGoogle      = "google"
	ProviderRekognition = "rekognition"
)

// Settings mirrors appsettings.json. The two Cognitive Services keys keep the
// names used by existing settings files.
type Settings struct {
	Endpoint     string `json:"CognitiveServicesEndpoint"`
	Key          string `json:"CognitiveServiceKey"`
	Provider     string `json:"Provider,omitempty"`
	Region       string `json:"Region,omitempty"`
	SourceDir    string `json:"SourceDir,omitempty"`
	PeopleDir    string `json:"PeopleDir,omitempty"`
	NotPeopleDir string `json:"NotPeopleDir,omitempty"`
	Extension    string `json:"Extension,omitempty"`
}

// Load reads the settings file at path and applies environment overrides.
// A missing file is not an error; a malformed one is.
func Load(path string) (Settings, error) {
	var s Settings
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env and flags may supply everything
	default:
		return s, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"FACESORT_ENDPOINT", &s.Endpoint},
		{"FACESORT_KEY", &s.Key},
		{"FACESORT_PROVIDER", &s.Provider},
		{"FACESORT_REGION", &s.Region},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// ApplyDefaults fills unset folders, extension and provider.
// The destination folders default to PEOPLE and "NOT PEOPLE" inside the source folder.
func (s *Settings) ApplyDefaults() {
	if s.SourceDir == "" {
		s.SourceDir = "."
	}
	if s.PeopleDir == "" {
		s.PeopleDir = filepath.Join(s.SourceDir, "PEOPLE")
	}
	if s.NotPeopleDir == "" {
		s.NotPeopleDir = filepath.Join(s.SourceDir, "NOT PEOPLE")
	}
	if s.Extension == "" {
		s.Extension = ".jpg"
	}
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = ProviderAzure
	}
}

// Validate checks the settings that a run cannot start without.
// Credentials are only checked for emptiness; bad values surface on the
// first API call.
func (s Settings) Validate() error {
	switch s.Provider {
	case ProviderAzure:
		if s.Endpoint == "" || s.Key == "" {
			return fmt.Errorf("azure provider requires both CognitiveServicesEndpoint and CognitiveServiceKey")
		}
	case ProviderGoogle, ProviderRekognition:
	default:
		return fmt.Errorf("unknown provider %q (expected azure, google or rekognition)", s.Provider)
	}
	switch ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s.Extension)), "."); ext {
	case "", "jpg", "jpeg":
	default:
		return fmt.Errorf("extension %q is not supported, only JPEG images (.jpg, .jpeg) can be annotated", s.Extension)
	}
	if s.SourceDir == s.PeopleDir || s.SourceDir == s.NotPeopleDir {
		return fmt.Errorf("destination folders must differ from the source folder")
	}
	return nil
}
