// Package reader extracts raw tag/value metadata from JPEG, TIFF and PNG
// files.
package reader

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/format"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// ReadError reports a file whose metadata could not be read. Callers treat
// it as "no metadata" and keep going.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("could not read metadata from %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read returns the metadata of the file at path decoded as f. The returned
// map is never nil; on failure it holds whatever was read before the error.
func Read(path string, f format.Format) (*metadata.Map, error) {
	out := metadata.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return out, &ReadError{Path: path, Err: err}
	}

	switch f {
	case format.JPEG:
		err = readJPEG(data, out)
	case format.TIFF:
		err = readExif(data, out)
	case format.PNG:
		err = readPNG(data, out)
	default:
		err = errors.Wrap(format.ErrUnsupported, string(f))
	}
	if err != nil {
		return out, &ReadError{Path: path, Err: err}
	}

	logger.Debugf("Read %d tags from %s", out.Len(), path)
	return out, nil
}
