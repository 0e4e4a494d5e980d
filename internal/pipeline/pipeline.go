// Package pipeline runs enumerate -> analyse -> route, one file at a time.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/facesort/internal/router"
	"github.com/andresmejia3/facesort/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Exit codes reported by a finished run.
const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitFileFailure = 2
	ExitInterrupted = 130
)

// Analyzer is the vision capability the pipeline depends on.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (types.AnalysisResult, error)
}

// TaskSource yields tasks in order; *source.Scanner satisfies it.
type TaskSource interface {
	Scan() bool
	Task() types.ImageTask
	Err() error
}

// Journal persists outcomes. Failures are logged, never fatal.
type Journal interface {
	RecordOutcome(ctx context.Context, runID uuid.UUID, o types.Outcome) error
}

// Pipeline holds everything a run needs, passed explicitly instead of living
// in package globals.
type Pipeline struct {
	Analyzer Analyzer
	Router   *router.Router
	Journal  Journal             // optional
	Observe  func(types.Outcome) // optional, called after each file (progress bars)
}

// Summary tallies a run.
type Summary struct {
	RunID       uuid.UUID
	Processed   int
	Saved       int
	Copied      int
	Skipped     int
	Failed      int
	Interrupted bool
}

func (s *Summary) add(o types.Outcome) {
	s.Processed++
	switch o.Status {
	case types.StatusSaved:
		s.Saved++
	case types.StatusCopied:
		s.Copied++
	case types.StatusFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// ExitCode maps the summary onto the process exit status.
func (s Summary) ExitCode() int {
	switch {
	case s.Interrupted:
		return ExitInterrupted
	case s.Failed > 0:
		return ExitFileFailure
	default:
		return ExitOK
	}
}

// Run processes every task from src sequentially. Each file is fully analysed
// and written (or skipped) before the next is read. Per-file failures are
// logged and the loop continues; the returned error only reports a failure of
// the listing itself. Cancellation is checked between files.
func (p *Pipeline) Run(ctx context.Context, runID uuid.UUID, src TaskSource) (Summary, error) {
	summary := Summary{RunID: runID}

	for src.Scan() {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		task := src.Task()
		out := p.Process(ctx, task)
		summary.add(out)
		logOutcome(out)

		if p.Journal != nil {
			if err := p.Journal.RecordOutcome(ctx, runID, out); err != nil {
				log.Warn().Err(err).Int("seq", task.Sequence).Msg("Failed to record outcome")
			}
		}
		if p.Observe != nil {
			p.Observe(out)
		}
	}
	if ctx.Err() != nil {
		summary.Interrupted = true
	}

	if err := src.Err(); err != nil {
		return summary, fmt.Errorf("enumeration stopped: %w", err)
	}
	return summary, nil
}

// Process runs a single task end to end and reports what happened.
func (p *Pipeline) Process(ctx context.Context, task types.ImageTask) types.Outcome {
	log.Info().Int("seq", task.Sequence).Str("file", task.SourcePath).Msg("Analyzing")

	data, err := readImage(task.SourcePath)
	if err != nil {
		return types.Failed(task, types.StageRead, err)
	}

	res, err := p.Analyzer.Analyze(ctx, data)
	if err != nil {
		return types.Failed(task, types.StageAnalyze, err)
	}

	return p.Router.Apply(task, data, res)
}

// readImage loads the whole file; the handle never outlives the call.
func readImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func logOutcome(o types.Outcome) {
	switch o.Status {
	case types.StatusFailed:
		log.Error().Err(o.Err).
			Int("seq", o.Task.Sequence).
			Str("file", o.Task.SourcePath).
			Str("stage", string(o.Stage)).
			Msg("Skipping file")
	case types.StatusSkipped:
		log.Info().
			Int("seq", o.Task.Sequence).
			Str("file", o.Task.SourcePath).
			Str("reason", o.Reason).
			Msg("No output")
	default:
		log.Info().
			Int("seq", o.Task.Sequence).
			Str("file", o.Task.SourcePath).
			Str("dest", o.Decision.Destination.String()).
			Int("faces", len(o.Analysis.Faces)).
			Str("caption", o.Analysis.Caption).
			Str("output", o.Path).
			Msg(o.Status.String())
	}
}
