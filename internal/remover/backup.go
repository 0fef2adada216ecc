package remover

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// backup copies src to dst, keeping mode and modification time, and checks
// that both files hash the same. A partial dst is removed on failure.
func backup(src, dst string) (err error) {
	if _, err := os.Lstat(dst); err == nil {
		return errors.Wrap(ErrBackupExists, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open original")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "stat original")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return errors.Wrap(err, "create backup")
	}
	defer func() {
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copy")
	}
	if err = out.Sync(); err != nil {
		out.Close()
		return errors.Wrap(err, "sync backup")
	}
	if err = out.Close(); err != nil {
		return errors.Wrap(err, "close backup")
	}
	if err = os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Wrap(err, "copy timestamps")
	}

	want, err := generateSHA3Hash(src)
	if err != nil {
		return err
	}
	got, err := generateSHA3Hash(dst)
	if err != nil {
		return err
	}
	if want != got {
		return errors.Errorf("backup hash mismatch: %s != %s", got, want)
	}
	return nil
}

// generateSHA3Hash generates a SHA3-256 hash for a file
func generateSHA3Hash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	h := sha3.New256()
	if _, err := io.Copy(h, file); err != nil {
		return "", errors.Wrap(err, "failed to read file")
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
