// Package source enumerates the images a run will process.
package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/facesort/internal/types"
	"github.com/rs/zerolog/log"
)

// ErrDirectoryNotFound is returned when the source directory does not exist.
var ErrDirectoryNotFound = errors.New("directory not found")

// batchSize is how many directory entries are pulled from the OS per read.
const batchSize = 64

// Scanner lazily walks the top level of a directory and yields one
// ImageTask per file whose extension matches. Sequence numbers start at 1 and
// follow the order the OS returns entries; nothing is sorted.
// A Scanner is single use.
type Scanner struct {
	dir     string
	ext     string
	f       *os.File
	pending []fs.DirEntry
	task    types.ImageTask
	seq     int
	err     error
	done    bool
}

// NewScanner opens dir for enumeration. ext is matched case-insensitively
// and may be given with or without the leading dot.
func NewScanner(dir, ext string) (*Scanner, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}

	return &Scanner{dir: dir, ext: NormalizeExt(ext), f: f}, nil
}

// NormalizeExt lower-cases ext and ensures it has a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Scan advances to the next matching file. It returns false at the end of the
// listing or on error; check Err afterwards.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	for {
		for len(s.pending) > 0 {
			entry := s.pending[0]
			s.pending = s.pending[1:]

			if !s.matches(entry) {
				continue
			}
			s.seq++
			s.task = types.ImageTask{
				SourcePath: filepath.Join(s.dir, entry.Name()),
				Sequence:   s.seq,
			}
			return true
		}

		entries, err := s.f.ReadDir(batchSize)
		s.pending = entries
		if err != nil {
			if !errors.Is(err, io.EOF) && s.err == nil {
				s.err = fmt.Errorf("failed to read directory: %w", err)
			}
			if len(entries) == 0 {
				s.finish()
				return false
			}
		}
	}
}

func (s *Scanner) matches(entry fs.DirEntry) bool {
	if strings.ToLower(filepath.Ext(entry.Name())) != s.ext {
		return false
	}
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}

	// Follow file symlinks, skip anything that resolves to a directory.
	info, err := os.Stat(filepath.Join(s.dir, entry.Name()))
	if err != nil {
		log.Warn().Err(err).Str("path", entry.Name()).Msg("Failed to resolve symlink, skipping")
		return false
	}
	return info.Mode().IsRegular()
}

func (s *Scanner) finish() {
	s.done = true
	s.pending = nil
	s.f.Close()
}

// Task returns the task produced by the most recent call to Scan.
func (s *Scanner) Task() types.ImageTask {
	return s.task
}

// Count returns how many tasks have been yielded so far.
func (s *Scanner) Count() int {
	return s.seq
}

// Err returns the first non-EOF error encountered while listing.
func (s *Scanner) Err() error {
	return s.err
}

// Close releases the directory handle. It is safe to call more than once.
func (s *Scanner) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.f.Close()
}
