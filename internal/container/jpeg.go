// Package container splits JPEG and PNG files into their metadata segments
// and chunks and reassembles them without touching image data.
package container

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// JPEG markers
const (
	MarkerSOI   = 0xD8
	MarkerEOI   = 0xD9
	MarkerSOS   = 0xDA
	MarkerAPP0  = 0xE0
	MarkerAPP1  = 0xE1
	MarkerAPP2  = 0xE2
	MarkerAPP13 = 0xED
	MarkerAPP14 = 0xEE
	MarkerCOM   = 0xFE
)

var exifHeader = []byte("Exif\x00\x00")

// ErrNotJPEG is returned when data does not start with an SOI marker.
var ErrNotJPEG = errors.New("not a JPEG stream")

// Segment is one marker segment preceding the first scan.
type Segment struct {
	Marker byte
	// Data is the payload without marker and length bytes. Nil for
	// standalone markers.
	Data       []byte
	Standalone bool
}

// IsExif reports whether the segment is an APP1 EXIF block.
func (s Segment) IsExif() bool {
	return s.Marker == MarkerAPP1 && bytes.HasPrefix(s.Data, exifHeader)
}

// IsAPP reports whether the segment is one of APP0..APP15.
func (s Segment) IsAPP() bool {
	return s.Marker >= MarkerAPP0 && s.Marker <= 0xEF
}

// JPEG is a parsed JPEG file: header segments plus the opaque remainder
// starting at the first SOS marker.
type JPEG struct {
	Segments []Segment
	// Scan holds everything from the first SOS (or EOI) marker to the end
	// of the file, copied verbatim.
	Scan []byte
}

// ParseJPEG splits data into header segments and scan data.
func ParseJPEG(data []byte) (*JPEG, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != MarkerSOI {
		return nil, ErrNotJPEG
	}

	j := &JPEG{}
	pos := 2
	for {
		if pos >= len(data) {
			return nil, errors.New("jpeg: no scan data before end of file")
		}
		if data[pos] != 0xFF {
			return nil, errors.Errorf("jpeg: invalid marker at offset %d", pos)
		}
		start := pos
		// Skip fill bytes
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			return nil, errors.New("jpeg: truncated marker")
		}
		marker := data[pos]
		pos++

		switch {
		case marker == MarkerSOS || marker == MarkerEOI:
			j.Scan = data[start:]
			return j, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			j.Segments = append(j.Segments, Segment{Marker: marker, Standalone: true})
			continue
		}

		if pos+2 > len(data) {
			return nil, errors.Errorf("jpeg: truncated length for marker 0x%02X", marker)
		}
		length := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if length < 2 || pos+length > len(data) {
			return nil, errors.Errorf("jpeg: bad segment length %d for marker 0x%02X", length, marker)
		}
		j.Segments = append(j.Segments, Segment{Marker: marker, Data: data[pos+2 : pos+length]})
		pos += length
	}
}

// Exif returns the TIFF stream of the first APP1 EXIF segment, or nil.
func (j *JPEG) Exif() []byte {
	for _, s := range j.Segments {
		if s.IsExif() {
			return s.Data[len(exifHeader):]
		}
	}
	return nil
}

// Filter returns a copy of j holding only the segments keep accepts.
func (j *JPEG) Filter(keep func(Segment) bool) *JPEG {
	out := &JPEG{Scan: j.Scan}
	for _, s := range j.Segments {
		if keep(s) {
			out.Segments = append(out.Segments, s)
		}
	}
	return out
}

// Bytes reassembles the file.
func (j *JPEG) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, MarkerSOI})
	for _, s := range j.Segments {
		buf.Write([]byte{0xFF, s.Marker})
		if s.Standalone {
			continue
		}
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(s.Data)+2))
		buf.Write(length[:])
		buf.Write(s.Data)
	}
	buf.Write(j.Scan)
	return buf.Bytes()
}

// ExifSegment wraps a TIFF stream into an APP1 EXIF segment.
func ExifSegment(tiff []byte) Segment {
	return Segment{Marker: MarkerAPP1, Data: append(append([]byte(nil), exifHeader...), tiff...)}
}
