// Package storage writes accepted uploads into the upload directory.
//
// Collisions are resolved with exclusive creates rather than a separate
// existence check, so two concurrent uploads of the same name never
// overwrite each other.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cgi_upload_server/filename"

	"github.com/spf13/afero"
)

// DefaultMaxAttempts bounds the exclusive-create attempts per upload.
const DefaultMaxAttempts = 5

// ErrNoUniqueName is returned when every candidate name already exists.
var ErrNoUniqueName = errors.New("no unique filename available")

// Store creates files under Dir.
type Store struct {
	Fs          afero.Fs
	Dir         string
	Now         func() time.Time
	MaxAttempts int
	Perm        os.FileMode
}

// NewStore returns a Store on fs rooted at dir with default settings.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{
		Fs:          fs,
		Dir:         dir,
		Now:         time.Now,
		MaxAttempts: DefaultMaxAttempts,
		Perm:        0o644,
	}
}

// candidates returns the names tried for name, in order:
// name, stem_TS.ext, stem_TS_1.ext, stem_TS_2.ext, ...
func (s *Store) candidates(name string) []string {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	names := make([]string, 0, attempts)
	names = append(names, name)
	if attempts == 1 {
		return names
	}

	stamped := filename.WithTimestamp(name, now())
	names = append(names, stamped)
	stem, ext := filename.SplitExt(stamped)
	for i := 1; len(names) < attempts; i++ {
		names = append(names, stem+"_"+strconv.Itoa(i)+ext)
	}
	return names
}

// Create writes data to a new file named name, or to the first free
// timestamped variant, and returns the name actually used. name must
// already have passed filename.Validate.
func (s *Store) Create(name string, data []byte) (string, error) {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}

	for _, candidate := range s.candidates(name) {
		path := filepath.Join(s.Dir, candidate)
		f, err := s.Fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}

		if err := writeAll(f, data); err != nil {
			_ = s.Fs.Remove(path)
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w for %s", ErrNoUniqueName, name)
}

func writeAll(f afero.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Remove deletes a file previously returned by Create.
func (s *Store) Remove(name string) error {
	return s.Fs.Remove(filepath.Join(s.Dir, name))
}
