package router

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/facesort/internal/annotate"
	"github.com/andresmejia3/facesort/internal/types"
	"github.com/rs/zerolog/log"
)

// Router writes analysed images into the PEOPLE / NOT PEOPLE folders.
type Router struct {
	PeopleDir    string
	NotPeopleDir string
	Style        annotate.Style
	RawNames     bool             // insert captions into filenames verbatim
	Duplicates   *DuplicateFilter // nil disables duplicate detection for copies
}

// New returns a Router with the default box style.
func New(peopleDir, notPeopleDir string) *Router {
	return &Router{
		PeopleDir:    peopleDir,
		NotPeopleDir: notPeopleDir,
		Style:        annotate.DefaultStyle,
	}
}

// EnsureDirs creates both destination folders.
func (r *Router) EnsureDirs() error {
	for _, dir := range []string{r.PeopleDir, r.NotPeopleDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Apply decides the destination for task and performs the write. data is the
// source image exactly as read from disk. Failures are reported in the
// returned Outcome, never by panicking.
func (r *Router) Apply(task types.ImageTask, data []byte, res types.AnalysisResult) types.Outcome {
	decision := Decide(task, res, r.RawNames)
	out := types.Outcome{Task: task, Analysis: res, Decision: decision}

	switch decision.Destination {
	case types.DestinationPeople:
		img, err := annotate.Decode(bytes.NewReader(data))
		if err != nil {
			return r.fail(out, types.StageDecode, err)
		}
		annotate.Faces(img, res.Faces, r.Style)

		var buf bytes.Buffer
		if err := annotate.Encode(&buf, img, r.Style.Quality); err != nil {
			return r.fail(out, types.StageDraw, fmt.Errorf("encode jpeg: %w", err))
		}

		path := filepath.Join(r.PeopleDir, decision.Filename)
		if err := writeFile(path, buf.Bytes()); err != nil {
			return r.fail(out, types.StageSave, err)
		}
		out.Status, out.Path = types.StatusSaved, path

	case types.DestinationNotPeople:
		if r.Duplicates != nil {
			dup, hash, err := r.Duplicates.Check(data)
			if err != nil {
				log.Debug().Err(err).Str("file", task.SourcePath).Msg("Duplicate check failed, copying anyway")
			}
			if dup {
				out.Status, out.Reason = types.StatusSkipped, "duplicate"
				return out
			}
			defer func() {
				if out.Status == types.StatusCopied {
					r.Duplicates.Add(hash)
				}
			}()
		}

		path := filepath.Join(r.NotPeopleDir, decision.Filename)
		if err := writeFile(path, data); err != nil {
			return r.fail(out, types.StageCopy, err)
		}
		out.Status, out.Path = types.StatusCopied, path

	default:
		out.Status, out.Reason = types.StatusSkipped, "no faces and no caption"
	}
	return out
}

func (r *Router) fail(out types.Outcome, stage types.Stage, err error) types.Outcome {
	out.Status, out.Stage, out.Err = types.StatusFailed, stage, err
	return out
}

// writeFile replaces path with data via a temp file in the same folder, so a
// failed write never leaves a truncated image behind.
func writeFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".facesort-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
