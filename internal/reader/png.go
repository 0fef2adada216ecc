package reader

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/deploymenttheory/go-genmeta/internal/container"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// PNGPrefix namespaces PNG text keys apart from EXIF tag names.
const PNGPrefix = "PNG."

// maxTextSize caps the inflated size of a single text chunk.
const maxTextSize = 16 << 20

var errTextTooLarge = errors.New("text chunk exceeds size limit")

func readPNG(data []byte, out *metadata.Map) error {
	chunks, err := container.ParsePNG(data)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		var key, text string
		var err error
		switch c.Type {
		case "tEXt":
			key, text, err = decodeText(c.Data)
		case "zTXt":
			key, text, err = decodeCompressedText(c.Data)
		case "iTXt":
			key, text, err = decodeInternationalText(c.Data)
		case "eXIf":
			if err := readExif(c.Data, out); err != nil {
				logger.Debugf("Skipping eXIf chunk: %v", err)
			}
			continue
		default:
			continue
		}
		if err != nil {
			logger.Debugf("Skipping %s chunk: %v", c.Type, err)
			continue
		}
		out.Set(PNGPrefix+key, text)
	}
	return nil
}

// tEXt: keyword NUL Latin-1 text
func decodeText(data []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok {
		return "", "", errors.New("missing keyword separator")
	}
	return latin1(key), latin1(rest), nil
}

// zTXt: keyword NUL method zlib(Latin-1 text)
func decodeCompressedText(data []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(rest) < 1 {
		return "", "", errors.New("missing keyword separator")
	}
	if rest[0] != 0 {
		return "", "", errors.Errorf("unknown compression method %d", rest[0])
	}
	text, err := inflate(rest[1:])
	if err != nil {
		return "", "", err
	}
	return latin1(key), latin1(text), nil
}

// iTXt: keyword NUL flag method language NUL translated-keyword NUL UTF-8 text
func decodeInternationalText(data []byte) (string, string, error) {
	key, rest, ok := bytes.Cut(data, []byte{0})
	if !ok || len(rest) < 2 {
		return "", "", errors.New("missing keyword separator")
	}
	compressed, method := rest[0] == 1, rest[1]
	_, rest, ok = bytes.Cut(rest[2:], []byte{0})
	if !ok {
		return "", "", errors.New("missing language tag")
	}
	_, text, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", errors.New("missing translated keyword")
	}
	if compressed {
		if method != 0 {
			return "", "", errors.Errorf("unknown compression method %d", method)
		}
		var err error
		if text, err = inflate(text); err != nil {
			return "", "", err
		}
	}
	return latin1(key), string(text), nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "inflate")
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "inflate")
	}
	if len(out) > maxTextSize {
		return nil, errTextTooLarge
	}
	return out, nil
}

func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
