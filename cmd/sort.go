package cmd

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/andresmejia3/facesort/internal/annotate"
	"github.com/andresmejia3/facesort/internal/config"
	"github.com/andresmejia3/facesort/internal/pipeline"
	"github.com/andresmejia3/facesort/internal/router"
	"github.com/andresmejia3/facesort/internal/source"
	"github.com/andresmejia3/facesort/internal/types"
	"github.com/andresmejia3/facesort/internal/utils"
	"github.com/andresmejia3/facesort/internal/vision"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sortOptions holds the flags of the sort command. Empty strings mean
// "keep whatever the settings file or environment says".
type sortOptions struct {
	ConfigPath     string
	SourceDir      string
	PeopleDir      string
	NotPeopleDir   string
	Extension      string
	Provider       string
	Endpoint       string
	Key            string
	Region         string
	RawNames       bool
	CreateDirs     bool
	SkipDuplicates bool
	Labels         bool
	Stroke         int
	Quality        int
	NoProgress     bool
}

var sortOpts sortOptions

var sortCmd = &cobra.Command{
	Use:   "sort [source-dir]",
	Short: "Analyze every image in a folder and sort it into PEOPLE / NOT PEOPLE",
	Long: `Sends each image to the vision service one at a time.
Images with at least one face are saved to PEOPLE with every face outlined.
Images without faces but with a caption are copied unchanged to NOT PEOPLE.
Everything else is left alone. Output files are named "<n>-<caption>.jpg".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			sortOpts.SourceDir = args[0]
		}
		code, err := runSort(cmd.Context(), sortOpts)
		if err != nil {
			return err
		}
		exitCode = code
		return nil
	},
}

func init() {
	sortCmd.Flags().StringVarP(&sortOpts.ConfigPath, "config", "c", config.DefaultFile, "Path to the settings file")
	sortCmd.Flags().StringVarP(&sortOpts.SourceDir, "source", "s", "", "Folder to read images from (default: current directory)")
	sortCmd.Flags().StringVar(&sortOpts.PeopleDir, "people", "", "Destination for images with faces (default: <source>/PEOPLE)")
	sortCmd.Flags().StringVar(&sortOpts.NotPeopleDir, "not-people", "", "Destination for captioned images without faces (default: <source>/NOT PEOPLE)")
	sortCmd.Flags().StringVarP(&sortOpts.Extension, "ext", "e", "", "Image extension to process (default: .jpg)")
	sortCmd.Flags().StringVarP(&sortOpts.Provider, "provider", "p", "", "Vision backend: azure, google or rekognition")
	sortCmd.Flags().StringVar(&sortOpts.Endpoint, "endpoint", "", "Vision service endpoint")
	sortCmd.Flags().StringVar(&sortOpts.Key, "key", "", "Vision service key (prefer FACESORT_KEY)")
	sortCmd.Flags().StringVar(&sortOpts.Region, "region", "", "AWS region for the rekognition backend")
	sortCmd.Flags().BoolVar(&sortOpts.RawNames, "raw-names", false, "Insert captions into filenames without sanitizing them")
	sortCmd.Flags().BoolVar(&sortOpts.CreateDirs, "create-dirs", false, "Create the destination folders if they are missing")
	sortCmd.Flags().BoolVar(&sortOpts.SkipDuplicates, "skip-duplicates", false, "Skip NOT PEOPLE copies that look like an image already there")
	sortCmd.Flags().BoolVar(&sortOpts.Labels, "label", false, "Stamp each face box with its index")
	sortCmd.Flags().IntVar(&sortOpts.Stroke, "stroke", annotate.DefaultStyle.Stroke, "Face box outline width in pixels")
	sortCmd.Flags().IntVarP(&sortOpts.Quality, "quality", "q", annotate.DefaultStyle.Quality, "JPEG quality of annotated images (1-100)")
	sortCmd.Flags().BoolVar(&sortOpts.NoProgress, "no-progress", false, "Disable the progress spinner")

	rootCmd.AddCommand(sortCmd)
}

// runSort wires settings, vision client, scanner and router into a pipeline
// and runs it. A non-nil error means the run never started (exit 1).
func runSort(ctx context.Context, opts sortOptions) (int, error) {
	if err := validateSortFlags(opts); err != nil {
		return pipeline.ExitSetup, showError("Invalid flags", err, "")
	}

	settings, err := loadSettings(opts)
	if err != nil {
		return pipeline.ExitSetup, showError("Failed to load settings", err, "Check the JSON syntax of "+opts.ConfigPath)
	}
	if err := settings.Validate(); err != nil {
		return pipeline.ExitSetup, showError("Invalid settings", err, "Set CognitiveServicesEndpoint and CognitiveServiceKey in "+opts.ConfigPath+" or use FACESORT_ENDPOINT / FACESORT_KEY")
	}

	analyzer, err := vision.New(ctx, settings)
	if err != nil {
		return pipeline.ExitSetup, showError("Failed to create vision client", err, "")
	}
	defer analyzer.Close()

	r := newRouter(settings, opts)
	if opts.CreateDirs {
		if err := r.EnsureDirs(); err != nil {
			return pipeline.ExitSetup, showError("Failed to create destination folders", err, "")
		}
	}

	scanner, err := source.NewScanner(settings.SourceDir, settings.Extension)
	if err != nil {
		hint := ""
		if errors.Is(err, source.ErrDirectoryNotFound) {
			hint = "Pass an existing folder with --source or set SourceDir in the settings file"
		}
		return pipeline.ExitSetup, showError("Failed to open source folder", err, hint)
	}
	defer scanner.Close()

	runID := uuid.New()
	p := &pipeline.Pipeline{Analyzer: analyzer, Router: r}
	if DB != nil {
		if err := DB.BeginRun(ctx, runID, settings.SourceDir, settings.Provider); err != nil {
			log.Warn().Err(err).Msg("Failed to register run, journal disabled")
		} else {
			p.Journal = DB
		}
	}

	fmt.Fprintf(os.Stderr, "📂 Source: %s (*%s)\n", settings.SourceDir, source.NormalizeExt(settings.Extension))
	fmt.Fprintf(os.Stderr, "👁️  Provider: %s\n", settings.Provider)
	fmt.Fprintf(os.Stderr, "🧾 Run ID: %s\n", runID.String()[:8])

	var bar *progressbar.ProgressBar
	if !opts.NoProgress && term.IsTerminal(int(os.Stderr.Fd())) {
		// The file count is unknown until enumeration ends, so use a spinner.
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("🔍 Sorting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		p.Observe = func(types.Outcome) { bar.Add(1) }
	}

	start := time.Now()
	summary, runErr := p.Run(ctx, runID, scanner)
	if bar != nil {
		bar.Finish()
	}

	if p.Journal != nil {
		// The run context may already be cancelled; still close the run record.
		if err := DB.FinishRun(context.Background(), runID, summary.Processed, summary.Failed, summary.Interrupted); err != nil {
			log.Warn().Err(err).Msg("Failed to finish run record")
		}
	}

	printSummary(summary, time.Since(start))

	if runErr != nil {
		return pipeline.ExitSetup, showError("Folder listing failed mid-run", runErr, "")
	}
	return summary.ExitCode(), nil
}

// loadSettings reads the settings file and layers flag overrides on top.
func loadSettings(opts sortOptions) (config.Settings, error) {
	s, err := config.Load(opts.ConfigPath)
	if err != nil {
		return s, err
	}
	applyOverrides(&s, opts)
	s.ApplyDefaults()
	return s, nil
}

func applyOverrides(s *config.Settings, opts sortOptions) {
	overrides := []struct {
		flag string
		dst  *string
	}{
		{opts.SourceDir, &s.SourceDir},
		{opts.PeopleDir, &s.PeopleDir},
		{opts.NotPeopleDir, &s.NotPeopleDir},
		{opts.Extension, &s.Extension},
		{opts.Provider, &s.Provider},
		{opts.Endpoint, &s.Endpoint},
		{opts.Key, &s.Key},
		{opts.Region, &s.Region},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}
}

func newRouter(s config.Settings, opts sortOptions) *router.Router {
	r := router.New(s.PeopleDir, s.NotPeopleDir)
	r.RawNames = opts.RawNames
	r.Style = annotate.Style{
		Stroke:  opts.Stroke,
		Color:   color.RGBA{R: 255, A: 255},
		Labels:  opts.Labels,
		Quality: opts.Quality,
	}
	if opts.SkipDuplicates {
		r.Duplicates = router.NewDuplicateFilter(s.NotPeopleDir)
	}
	return r
}

// validateSortFlags checks numeric flags before any network or disk work.
func validateSortFlags(opts sortOptions) error {
	if opts.Quality < 1 || opts.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", opts.Quality)
	}
	if opts.Stroke < 1 {
		return fmt.Errorf("stroke must be >= 1, got %d", opts.Stroke)
	}
	return nil
}

func printSummary(s pipeline.Summary, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SORT SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🖼️  Processed:   %d\n", s.Processed)
	fmt.Fprintf(os.Stderr, "👤 PEOPLE:      %d\n", s.Saved)
	fmt.Fprintf(os.Stderr, "🏞️  NOT PEOPLE:  %d\n", s.Copied)
	fmt.Fprintf(os.Stderr, "⏭️  Skipped:     %d\n", s.Skipped)
	fmt.Fprintf(os.Stderr, "❌ Failed:      %d\n", s.Failed)
	fmt.Fprintf(os.Stderr, "⏱️  Elapsed:     %s\n", utils.FmtDuration(elapsed))
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	if s.Interrupted {
		fmt.Fprintf(os.Stderr, "🛑 Interrupted. Files not yet listed were left untouched.\n")
	} else {
		fmt.Fprintf(os.Stderr, "🏁 Sort Complete.\n")
	}
}
