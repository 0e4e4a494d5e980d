package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// errOut is where error boxes are written; swapped in tests.
var errOut io.Writer = os.Stderr

// ShowError prints the unified facesort error box without exiting.
// hint, when non-empty, is printed as a follow-up suggestion.
func ShowError(context string, err error, hint string) {
	fmt.Fprintf(errOut, "\n---------------------------------------------------------\n")
	fmt.Fprintf(errOut, "🚨 FACESORT ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(errOut, "DETAILS: %v\n", err)
	}
	if hint != "" {
		fmt.Fprintf(errOut, "HINT: %s\n", hint)
	}
	fmt.Fprintf(errOut, "---------------------------------------------------------\n")
}

// Die is the unified exit strategy for setup failures.
func Die(context string, err error, hint string) {
	ShowError(context, err, hint)
	os.Exit(1)
}

// FmtDuration renders d as HH:MM:SS.
func FmtDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
