package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facesort/internal/logging"
	"github.com/andresmejia3/facesort/internal/store"
	"github.com/andresmejia3/facesort/internal/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// DB is the optional run journal shared by subcommands. It stays nil
	// unless --db or POSTGRES_HOST is provided.
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// logLevel overrides FACESORT_LOG_LEVEL
	logLevel string
	// exitCode is set by commands that finish with a non-error status other than 0
	exitCode int
)

// errNoJournal is returned by commands that need the journal when none is configured.
var errNoJournal = errors.New("no run journal configured (use --db or POSTGRES_HOST)")

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facesort",
	Short:   "Sort a folder of photos into PEOPLE / NOT PEOPLE using a cloud vision service",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logLevel)

		url := resolveDBURL(dbURL)
		if url == "" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		var err error
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			utils.Die("Failed to connect to the run journal", err, "Check --db or the POSTGRES_* variables, or unset them to run without a journal")
		}
		log.Debug().Msg("Run journal connected")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

// resolveDBURL returns the flag value, or a connection string assembled from
// the POSTGRES_* environment, or "" when the journal is not configured.
func resolveDBURL(flag string) string {
	if flag != "" {
		return flag
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// shownError marks an error whose box has already been printed.
type shownError struct {
	error
}

func (e shownError) Unwrap() error { return e.error }

// showError prints the boxed error and returns err marked as shown.
func showError(context string, err error, hint string) error {
	utils.ShowError(context, err, hint)
	return shownError{err}
}

// reportError prints errors that no command reported, such as bad flags.
func reportError(w io.Writer, err error) {
	var shown shownError
	if errors.As(err, &shown) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func requireDB() error {
	if DB == nil {
		return showError("Run journal unavailable", errNoJournal, "")
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
	stop()
	os.Exit(exitCode)
}

func init() {
	// Commands print their own boxed errors; see reportError for the rest.
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the optional run journal")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $FACESORT_LOG_LEVEL or info)")
}
