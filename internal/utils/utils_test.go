package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	old := errOut
	errOut = &buf
	defer func() { errOut = old }()

	ShowError("Failed to load settings", errors.New("unexpected EOF"), "check appsettings.json")

	out := buf.String()
	for _, want := range []string{"FACESORT ERROR: Failed to load settings", "DETAILS: unexpected EOF", "HINT: check appsettings.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestShowErrorWithoutDetails(t *testing.T) {
	var buf bytes.Buffer
	old := errOut
	errOut = &buf
	defer func() { errOut = old }()

	ShowError("Nothing to do", nil, "")

	if strings.Contains(buf.String(), "DETAILS") || strings.Contains(buf.String(), "HINT") {
		t.Errorf("Unexpected optional sections:\n%s", buf.String())
	}
}

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{65 * time.Second, "00:01:05"},
		{3661 * time.Second, "01:01:01"},
	}

	for _, tt := range tests {
		if got := FmtDuration(tt.d); got != tt.want {
			t.Errorf("FmtDuration(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}
