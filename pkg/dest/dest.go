// Package dest enforces the filesystem rules that apply before a diagram is
// written: never clobber a directory, never write through a read-only file,
// create missing parents, and start every write from an absent file.
package dest

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/diagramgen/pkg/errors"
)

// DirPerm is the permission used for created parent directories.
const DirPerm = 0755

// FilePerm is the permission used for written diagram files.
const FilePerm = 0644

// Prepare readies path for a fresh write. On success every missing parent
// exists and no file is left at path.
//
// Prepare fails with a DESTINATION error when path is a directory, when an
// existing file is not writable, when the parent cannot be created, or when
// the existing file cannot be deleted.
func Prepare(path string) error {
	info, err := os.Stat(path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeDestination, err, "cannot inspect %s", path).WithPath(path)
	}

	if exists && info.IsDir() {
		return errors.New(errors.ErrCodeDestination, "%s is a directory", path).WithPath(path)
	}
	if exists && !writable(path) {
		return errors.New(errors.ErrCodeDestination, "%s is not writable", path).WithPath(path)
	}

	parent := filepath.Dir(path)
	if _, err := os.Stat(parent); os.IsNotExist(err) {
		if err := os.MkdirAll(parent, DirPerm); err != nil {
			return errors.Wrap(errors.ErrCodeDestination, err, "unable to create directory or parent directory of %s", path).WithPath(path)
		}
	}

	if exists {
		if err := os.Remove(path); err != nil {
			return errors.Wrap(errors.ErrCodeDestination, err, "unable to delete existing file %s", path).WithPath(path)
		}
	}
	return nil
}

// Create runs Prepare and opens a new file at path for writing.
// The caller must close the returned file.
func Create(path string) (*os.File, error) {
	if err := Prepare(path); err != nil {
		return nil, err
	}
	return OpenNew(path)
}

// OpenNew creates path, which must not exist. Call it after Prepare.
func OpenNew(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerm)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create %s", path).WithPath(path)
	}
	return f, nil
}

// writable probes an existing file by opening it for writing without
// truncating it.
func writable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
