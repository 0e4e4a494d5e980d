package types

import "fmt"

// ImageTask represents a single source image handed to the pipeline
type ImageTask struct {
	SourcePath string
	Sequence   int // 1-based, listing order
}

// Rectangle is an axis-aligned face bounding box in image pixels
type Rectangle struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnalysisResult is the backend-neutral view of a vision response.
type AnalysisResult struct {
	Faces      []Rectangle
	Caption    string
	HasCaption bool
}

// Destination selects the output folder for an image.
type Destination int

const (
	DestinationNone Destination = iota
	DestinationPeople
	DestinationNotPeople
)

func (d Destination) String() string {
	switch d {
	case DestinationPeople:
		return "PEOPLE"
	case DestinationNotPeople:
		return "NOT PEOPLE"
	default:
		return "none"
	}
}

// RoutingDecision is derived deterministically from an AnalysisResult.
type RoutingDecision struct {
	Destination Destination
	Filename    string
	Annotate    bool
}

// Status is the terminal state of one task.
type Status int

const (
	StatusSkipped Status = iota // no output by rule
	StatusSaved                 // annotated image written
	StatusCopied                // plain copy written
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusCopied:
		return "copied"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Stage tags where a failed task stopped.
type Stage string

const (
	StageNone    Stage = ""
	StageRead    Stage = "read"
	StageAnalyze Stage = "analyze"
	StageDecode  Stage = "decode"
	StageDraw    Stage = "draw"
	StageSave    Stage = "save"
	StageCopy    Stage = "copy"
)

// Outcome is what processing a single ImageTask produced.
type Outcome struct {
	Task     ImageTask
	Analysis AnalysisResult
	Decision RoutingDecision
	Status   Status
	Stage    Stage
	Path     string // output path, empty when nothing was written
	Reason   string // human readable note for skips
	Err      error
}

// Failed builds an Outcome for a task that stopped at the given stage.
func Failed(task ImageTask, stage Stage, err error) Outcome {
	return Outcome{Task: task, Status: StatusFailed, Stage: stage, Err: err}
}

func (o Outcome) String() string {
	if o.Status == StatusFailed {
		return fmt.Sprintf("#%d %s: %s failed: %v", o.Task.Sequence, o.Task.SourcePath, o.Stage, o.Err)
	}
	return fmt.Sprintf("#%d %s: %s -> %s", o.Task.Sequence, o.Task.SourcePath, o.Status, o.Path)
}
