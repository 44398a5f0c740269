package upload

import (
	"os"
	"syscall"

	"github.com/spf13/afero"
)

// failingFs rejects creation of one path with EIO.
type failingFs struct {
	afero.Fs
	failOn string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.failOn {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EIO}
	}
	return f.Fs.OpenFile(name, flag, perm)
}
