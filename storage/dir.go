package storage

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// DirStatus reports whether the upload directory can accept files.
type DirStatus int

const (
	// DirOK means the directory exists and is writable.
	DirOK DirStatus = iota
	// DirNotConfigured means no upload directory was configured.
	DirNotConfigured
	// DirUnavailable means the directory is missing, not a directory, or not writable.
	DirUnavailable
)

func (s DirStatus) String() string {
	switch s {
	case DirOK:
		return "ok"
	case DirNotConfigured:
		return "not-configured"
	case DirUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// CheckDir classifies the upload directory.
func CheckDir(fs afero.Fs, dir string) DirStatus {
	if dir == "" {
		return DirNotConfigured
	}
	fi, err := fs.Stat(dir)
	if err != nil || !fi.IsDir() {
		return DirUnavailable
	}
	if !writable(fs, dir) {
		return DirUnavailable
	}
	return DirOK
}

func writable(fs afero.Fs, dir string) bool {
	if _, ok := fs.(*afero.OsFs); ok {
		return unix.Access(dir, unix.W_OK) == nil
	}

	// No access(2) for virtual filesystems; probe with an exclusive create.
	probe := filepath.Join(dir, ".upload-probe-"+uuid.NewString())
	f, err := fs.OpenFile(probe, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return false
	}
	_ = f.Close()
	_ = fs.Remove(probe)
	return true
}
