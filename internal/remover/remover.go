// Package remover rewrites image files without provenance metadata, keeping
// a verified byte-for-byte backup of the original.
package remover

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/format"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
)

// BackupSuffix is appended to the original path to name the backup.
const BackupSuffix = ".backup"

// BackupError means the backup could not be created or verified. The
// original file has not been modified.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// RemoveError means the stripped image could not be produced or written.
// The original file is intact and the backup has been removed.
type RemoveError struct {
	Path string
	Err  error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("could not remove metadata from %s: %v", e.Path, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

// ErrBackupExists is wrapped in a BackupError when a previous backup would
// be overwritten.
var ErrBackupExists = errors.New("backup file already exists")

// Remove backs up path to path+".backup", then rewrites path in place without
// metadata. It returns the backup path.
func Remove(path string) (string, error) {
	f, err := format.Detect(path)
	if err != nil {
		return "", &RemoveError{Path: path, Err: err}
	}

	backupPath := path + BackupSuffix
	if err := backup(path, backupPath); err != nil {
		return "", &BackupError{Path: path, Err: err}
	}

	if err := rewrite(path, f); err != nil {
		if rmErr := os.Remove(backupPath); rmErr != nil {
			logger.Warningf("Could not remove backup %s: %v", backupPath, rmErr)
		}
		return "", &RemoveError{Path: path, Err: err}
	}

	logger.Debugf("Stripped %s metadata from %s", f, path)
	return backupPath, nil
}

func rewrite(path string, f format.Format) error {
	original, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read original")
	}

	var cleaned []byte
	switch f {
	case format.PNG:
		cleaned, err = stripPNG(original)
	case format.JPEG:
		cleaned, err = stripJPEG(original)
	case format.TIFF:
		cleaned, err = stripTIFF(original)
	default:
		err = errors.Wrap(format.ErrUnsupported, string(f))
	}
	if err != nil {
		return err
	}
	return replaceFile(path, cleaned)
}

// replaceFile writes data next to path and renames it over path, so a failed
// write never leaves a truncated original.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "stat original")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return errors.Wrap(err, "replace original")
	}
	return nil
}
