package container

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
)

// PNGSignature starts every PNG stream.
var PNGSignature = []byte("\x89PNG\r\n\x1a\n")

// ErrNotPNG is returned when data does not carry the PNG signature.
var ErrNotPNG = errors.New("not a PNG stream")

// Chunk is one PNG chunk.
type Chunk struct {
	Type string
	Data []byte
}

// ParsePNG splits data into chunks up to and including IEND, verifying each
// chunk's CRC.
func ParsePNG(data []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(data, PNGSignature) {
		return nil, ErrNotPNG
	}

	var chunks []Chunk
	pos := len(PNGSignature)
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, errors.New("png: truncated chunk header")
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if length < 0 || pos+12+length > len(data) {
			return nil, errors.Errorf("png: chunk %q overruns file", typ)
		}
		body := data[pos+8 : pos+8+length]
		want := binary.BigEndian.Uint32(data[pos+8+length : pos+12+length])
		if got := crc32.ChecksumIEEE(data[pos+4 : pos+8+length]); got != want {
			return nil, errors.Errorf("png: bad CRC in chunk %q", typ)
		}
		chunks = append(chunks, Chunk{Type: typ, Data: body})
		pos += 12 + length
		if typ == "IEND" {
			return chunks, nil
		}
	}
	return nil, errors.New("png: missing IEND chunk")
}

// EncodePNG writes the signature and chunks with fresh lengths and CRCs.
func EncodePNG(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(PNGSignature)
	for _, c := range chunks {
		var header [8]byte
		binary.BigEndian.PutUint32(header[:4], uint32(len(c.Data)))
		copy(header[4:], c.Type)
		buf.Write(header[:])
		buf.Write(c.Data)

		crc := crc32.NewIEEE()
		crc.Write(header[4:])
		crc.Write(c.Data)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		buf.Write(sum[:])
	}
	return buf.Bytes()
}

// InsertAfter returns chunks with extra placed directly after the first
// chunk of type anchor.
func InsertAfter(chunks []Chunk, anchor string, extra ...Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks)+len(extra))
	inserted := false
	for _, c := range chunks {
		out = append(out, c)
		if !inserted && c.Type == anchor {
			out = append(out, extra...)
			inserted = true
		}
	}
	return out
}

// Find returns the first chunk of type typ.
func Find(chunks []Chunk, typ string) (Chunk, bool) {
	for _, c := range chunks {
		if c.Type == typ {
			return c, true
		}
	}
	return Chunk{}, false
}
