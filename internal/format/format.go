package format

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/logger"
)

// Format is an image container understood by the reader and remover.
type Format string

const (
	Unknown Format = "unknown"
	JPEG    Format = "jpeg"
	TIFF    Format = "tiff"
	PNG     Format = "png"
)

// ErrUnsupported is returned for files whose extension is not a supported
// image container.
var ErrUnsupported = errors.New("unsupported format")

// Signature is a container's magic prefix.
type Signature struct {
	Name   string
	Magic  []byte
	Format Format
}

// REF: https://en.wikipedia.org/wiki/List_of_file_signatures
var knownSignatures = []Signature{
	{Name: "JPEG image", Magic: []byte{0xFF, 0xD8, 0xFF}, Format: JPEG},
	{Name: "PNG image", Magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Format: PNG},
	{Name: "TIFF little-endian", Magic: []byte{0x49, 0x49, 0x2A, 0x00}, Format: TIFF},
	{Name: "TIFF big-endian", Magic: []byte{0x4D, 0x4D, 0x00, 0x2A}, Format: TIFF},
}

var extensions = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".tif":  TIFF,
	".tiff": TIFF,
	".png":  PNG,
}

// FromPath maps a file extension, case-insensitively, to its format.
func FromPath(path string) Format {
	if f, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return Unknown
}

// IsSupported reports whether path has a supported image extension.
func IsSupported(path string) bool {
	return FromPath(path) != Unknown
}

// Sniff identifies the container from its leading bytes.
func Sniff(header []byte) Format {
	for _, sig := range knownSignatures {
		if len(header) >= len(sig.Magic) && bytes.Equal(header[:len(sig.Magic)], sig.Magic) {
			return sig.Format
		}
	}
	return Unknown
}

// Detect returns the container format to decode path with. The extension
// decides whether the file is supported at all; when the content signature
// names a different supported container, the signature wins.
func Detect(path string) (Format, error) {
	declared := FromPath(path)
	if declared == Unknown {
		return Unknown, errors.Wrap(ErrUnsupported, filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return declared, errors.Wrap(err, "open")
	}
	defer file.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return declared, errors.Wrap(err, "read header")
	}

	sniffed := Sniff(header[:n])
	if sniffed != Unknown && sniffed != declared {
		logger.Debugf("%s: extension says %s but content is %s", path, declared, sniffed)
		return sniffed, nil
	}
	return declared, nil
}
