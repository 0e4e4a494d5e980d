package router

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog/log"
)

// dedupThreshold is the maximum Hamming distance between two dHash values
// below which images are considered perceptually identical.
const dedupThreshold = 10

// DuplicateFilter remembers perceptual hashes of the JPEGs in a folder so a
// re-run does not copy the same picture in again under a new number.
// It is not safe for concurrent use.
type DuplicateFilter struct {
	dir    string
	hashes []*goimagehash.ImageHash
	loaded bool
}

// NewDuplicateFilter creates a filter over dir. The folder is hashed lazily on
// first use.
func NewDuplicateFilter(dir string) *DuplicateFilter {
	return &DuplicateFilter{dir: dir}
}

// Check hashes data and reports whether a near-identical image is already known.
// The returned hash should be passed to Add once the image has been written.
func (d *DuplicateFilter) Check(data []byte) (bool, *goimagehash.ImageHash, error) {
	if !d.loaded {
		d.load()
	}

	hash, err := hashJPEG(data)
	if err != nil {
		return false, nil, err
	}
	for _, h := range d.hashes {
		dist, err := hash.Distance(h)
		if err == nil && dist < dedupThreshold {
			return true, hash, nil
		}
	}
	return false, hash, nil
}

// Add records the hash of an image that now exists in the folder.
func (d *DuplicateFilter) Add(hash *goimagehash.ImageHash) {
	if hash != nil {
		d.hashes = append(d.hashes, hash)
	}
}

func (d *DuplicateFilter) load() {
	d.loaded = true
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", d.dir).Msg("Cannot read folder for duplicate detection")
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.ToLower(filepath.Ext(e.Name())) != OutputExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, e.Name()))
		if err != nil {
			continue
		}
		hash, err := hashJPEG(data)
		if err != nil {
			// Unreadable files cannot match anything.
			log.Debug().Err(err).Str("file", e.Name()).Msg("Skipping unhashable file")
			continue
		}
		d.hashes = append(d.hashes, hash)
	}
	log.Debug().Str("dir", d.dir).Int("hashes", len(d.hashes)).Msg("Loaded duplicate filter")
}

func hashJPEG(data []byte) (*goimagehash.ImageHash, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for hashing: %w", err)
	}
	return goimagehash.DifferenceHash(img)
}
