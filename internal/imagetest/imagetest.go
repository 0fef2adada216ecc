// Package imagetest builds small JPEG, PNG and EXIF fixtures for tests.
package imagetest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/deploymenttheory/go-genmeta/internal/container"
)

// Gradient returns a w x h NRGBA image with distinct pixel values.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: uint8((x + y) * 8), A: 255})
		}
	}
	return img
}

// PNG encodes img and inserts extra chunks right after IHDR.
func PNG(t testing.TB, img image.Image, extra ...container.Chunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	chunks, err := container.ParsePNG(buf.Bytes())
	if err != nil {
		t.Fatalf("parse png: %v", err)
	}
	return container.EncodePNG(container.InsertAfter(chunks, "IHDR", extra...))
}

// JPEG encodes img and inserts segments right after SOI.
func JPEG(t testing.TB, img image.Image, segments ...container.Segment) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	j, err := container.ParseJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("parse jpeg: %v", err)
	}
	j.Segments = append(append([]container.Segment(nil), segments...), j.Segments...)
	return j.Bytes()
}

// Write stores data under name in dir and returns the path.
func Write(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Text returns a tEXt chunk.
func Text(key, value string) container.Chunk {
	return container.Chunk{Type: "tEXt", Data: []byte(key + "\x00" + value)}
}

// CompressedText returns a zTXt chunk.
func CompressedText(key, value string) container.Chunk {
	return container.Chunk{Type: "zTXt", Data: append([]byte(key+"\x00\x00"), deflate(value)...)}
}

// InternationalText returns an iTXt chunk, optionally compressed.
func InternationalText(key, value string, compressed bool) container.Chunk {
	data := []byte(key + "\x00")
	if compressed {
		data = append(data, 1, 0)
		data = append(data, "en\x00\x00"...)
		data = append(data, deflate(value)...)
	} else {
		data = append(data, 0, 0)
		data = append(data, "en\x00\x00"...)
		data = append(data, value...)
	}
	return container.Chunk{Type: "iTXt", Data: data}
}

// Gamma returns a gAMA chunk.
func Gamma(g uint32) container.Chunk {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, g)
	return container.Chunk{Type: "gAMA", Data: data}
}

// Phys returns a pHYs chunk in pixels per metre.
func Phys(x, y uint32) container.Chunk {
	data := make([]byte, 9)
	binary.BigEndian.PutUint32(data[0:4], x)
	binary.BigEndian.PutUint32(data[4:8], y)
	data[8] = 1
	return container.Chunk{Type: "pHYs", Data: data}
}

func deflate(s string) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(s))
	zw.Close()
	return buf.Bytes()
}

// TIFF data types
const (
	TypeShort     = 3
	TypeLong      = 4
	TypeASCII     = 2
	TypeUndefined = 7
)

// Entry is one IFD entry.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	Value []byte
}

// ASCII returns a NUL-terminated ASCII entry.
func ASCII(tag uint16, s string) Entry {
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(s) + 1), Value: append([]byte(s), 0)}
}

// Undefined returns an UNDEFINED entry holding b.
func Undefined(tag uint16, b []byte) Entry {
	return Entry{Tag: tag, Type: TypeUndefined, Count: uint32(len(b)), Value: b}
}

// Short returns a single SHORT entry.
func Short(tag uint16, v uint16) Entry {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return Entry{Tag: tag, Type: TypeShort, Count: 1, Value: b}
}

// Shorts returns a SHORT array entry.
func Shorts(tag uint16, vs ...uint16) Entry {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return Entry{Tag: tag, Type: TypeShort, Count: uint32(len(vs)), Value: b}
}

func long(tag uint16, v uint32) Entry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Entry{Tag: tag, Type: TypeLong, Count: 1, Value: b}
}

// Exif describes a little-endian TIFF/EXIF stream.
type Exif struct {
	IFD0      []Entry
	ExifIFD   []Entry
	Thumbnail []byte
	// Strip is uncompressed image data referenced from IFD0.
	Strip []byte
}

// RGBStrip describes an uncompressed 8-bit RGB TIFF image of w x h pixels
// whose strip holds pix.
func RGBStrip(w, h uint16, pix []byte, extra ...Entry) Exif {
	entries := []Entry{
		Short(0x0100, w),
		Short(0x0101, h),
		Shorts(0x0102, 8, 8, 8),
		Short(0x0103, 1),
		Short(0x0106, 2),
		Short(0x0115, 3),
		Short(0x0116, h),
	}
	return Exif{IFD0: append(entries, extra...), Strip: pix}
}

// TIFF lays the stream out as header, IFD0, EXIF IFD, IFD1, thumbnail,
// strip.
func (e Exif) TIFF() []byte {
	ifd0 := append([]Entry(nil), e.IFD0...)
	if len(e.Strip) > 0 {
		ifd0 = append(ifd0, long(0x0111, 0), long(0x0117, uint32(len(e.Strip))))
	}
	stripAt := len(ifd0) - 2
	if len(e.ExifIFD) > 0 {
		ifd0 = append(ifd0, long(0x8769, 0))
	}

	off0 := uint32(8)
	offExif := off0 + ifdSize(ifd0)
	off1 := offExif
	if len(e.ExifIFD) > 0 {
		off1 += ifdSize(e.ExifIFD)
	}

	var ifd1 []Entry
	if len(e.Thumbnail) > 0 {
		ifd1 = []Entry{long(0x0201, 0), long(0x0202, uint32(len(e.Thumbnail)))}
	}
	offThumb := off1 + ifdSize(ifd1)

	if len(e.ExifIFD) > 0 {
		ifd0[len(ifd0)-1] = long(0x8769, offExif)
	}
	if len(ifd1) > 0 {
		ifd1[0] = long(0x0201, offThumb)
	}
	if len(e.Strip) > 0 {
		ifd0[stripAt] = long(0x0111, offThumb+uint32(len(e.Thumbnail)))
	}

	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	binary.Write(&buf, binary.LittleEndian, off0)

	next0 := uint32(0)
	if len(ifd1) > 0 {
		next0 = off1
	}
	buf.Write(encodeIFD(ifd0, off0, next0))
	if len(e.ExifIFD) > 0 {
		buf.Write(encodeIFD(e.ExifIFD, offExif, 0))
	}
	if len(ifd1) > 0 {
		buf.Write(encodeIFD(ifd1, off1, 0))
		buf.Write(e.Thumbnail)
	}
	buf.Write(e.Strip)
	return buf.Bytes()
}

func ifdSize(entries []Entry) uint32 {
	if len(entries) == 0 {
		return 0
	}
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.Value) > 4 {
			size += uint32(len(e.Value))
		}
	}
	return size
}

func encodeIFD(entries []Entry, offset, next uint32) []byte {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	var dir, data bytes.Buffer
	dataOffset := offset + uint32(2+12*len(sorted)+4)
	binary.Write(&dir, binary.LittleEndian, uint16(len(sorted)))
	for _, e := range sorted {
		binary.Write(&dir, binary.LittleEndian, e.Tag)
		binary.Write(&dir, binary.LittleEndian, e.Type)
		binary.Write(&dir, binary.LittleEndian, e.Count)
		if len(e.Value) <= 4 {
			var inline [4]byte
			copy(inline[:], e.Value)
			dir.Write(inline[:])
			continue
		}
		binary.Write(&dir, binary.LittleEndian, dataOffset+uint32(data.Len()))
		data.Write(e.Value)
	}
	binary.Write(&dir, binary.LittleEndian, next)
	return append(dir.Bytes(), data.Bytes()...)
}
