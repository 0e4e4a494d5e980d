package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facesort/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	historyRun   string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sort runs, or the per-file outcomes of one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			return err
		}
		if historyRun != "" {
			return runHistoryOutcomes(cmd, historyRun)
		}
		return runHistory(cmd)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the outcomes of a single run (full UUID)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command) error {
	runs, err := DB.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return showError("Failed to list runs", err, "")
	}

	if len(runs) == 0 {
		fmt.Println("No runs found in database.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tPROVIDER\tPROCESSED\tFAILED\tSTATUS\tSOURCE")
	fmt.Fprintln(w, "---\t-------\t--------\t---------\t------\t------\t------")

	for _, r := range runs {
		status := "finished"
		switch {
		case r.FinishedAt == nil:
			status = "running"
		case r.Interrupted:
			status = "interrupted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Provider, r.Processed, r.Failed, status, r.SourceDir)
	}
	return w.Flush()
}

func runHistoryOutcomes(cmd *cobra.Command, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return showError("Invalid run ID", err, "Copy the full RUN column from 'facesort history'")
	}

	outcomes, err := DB.ListOutcomes(cmd.Context(), id)
	if err != nil {
		hint := ""
		if errors.Is(err, store.ErrRunNotFound) {
			hint = "Run 'facesort history' to see recorded runs"
		}
		return showError("Failed to list outcomes", err, hint)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tDEST\tFACES\tCAPTION\tFILE\tDETAIL")
	fmt.Fprintln(w, "-\t------\t----\t-----\t-------\t----\t------")

	for _, o := range outcomes {
		detail := o.OutputPath
		if o.Error != "" {
			detail = o.Stage + ": " + o.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			o.Sequence, o.Status, o.Destination, o.Faces, o.Caption, o.SourcePath, detail)
	}
	return w.Flush()
}
