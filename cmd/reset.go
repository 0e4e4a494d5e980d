package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/facesort/internal/config"
	"github.com/spf13/cobra"
)

var (
	resetDB      bool
	resetOutputs bool
	resetYes     bool
	resetConfig  string
	resetSource  string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset state (run journal, sorted output folders)",
	Long:  "Clears the run journal and/or the PEOPLE / NOT PEOPLE folders. Without flags it clears the journal only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if !resetDB && !resetOutputs {
			resetDB = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if err := requireDB(); err != nil {
				return err
			}
			if resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP the run journal tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					return showError("Failed to reset database", err, "")
				}
			}
		}

		if resetOutputs {
			settings, err := config.Load(resetConfig)
			if err != nil {
				return showError("Failed to load settings", err, "")
			}
			if resetSource != "" {
				settings.SourceDir = resetSource
			}
			settings.ApplyDefaults()

			prompt := fmt.Sprintf("⚠️  Are you sure you want to delete %q and %q?", settings.PeopleDir, settings.NotPeopleDir)
			if resetYes || confirm(reader, os.Stdout, prompt) {
				fmt.Println("🗑️  Clearing Output Folders...")
				removeDir(settings.PeopleDir)
				removeDir(settings.NotPeopleDir)
			}
		}

		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "journal", false, "Drop the run journal tables")
	resetCmd.Flags().BoolVar(&resetOutputs, "outputs", false, "Delete the PEOPLE and NOT PEOPLE folders")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	resetCmd.Flags().StringVarP(&resetConfig, "config", "c", config.DefaultFile, "Settings file naming the output folders")
	resetCmd.Flags().StringVarP(&resetSource, "source", "s", "", "Source folder the default output folders live in")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
