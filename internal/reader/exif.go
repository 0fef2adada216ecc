package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/text/encoding/unicode"

	"github.com/deploymenttheory/go-genmeta/internal/container"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

const thumbnailPrefix = "JPEGThumbnail"

// maxBinaryText is the largest undefined-type value rendered byte by byte.
const maxBinaryText = 512

func readJPEG(data []byte, out *metadata.Map) error {
	j, err := container.ParseJPEG(data)
	if err != nil {
		return err
	}
	raw := j.Exif()
	if raw == nil {
		return nil
	}
	return readExif(raw, out)
}

// readExif decodes a TIFF-structured EXIF stream in two passes: goexif's
// named field table, then a low-level scan of every IFD.
func readExif(raw []byte, out *metadata.Map) error {
	x, err := exif.Decode(bytes.NewReader(raw))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		if err == nil {
			err = errors.New("empty exif")
		}
		return errors.Wrap(err, "decode exif")
	}
	if err != nil {
		logger.Debugf("Partial EXIF decode: %v", err)
	}

	walker := &namedWalker{order: x.Tiff.Order}
	if err := x.Walk(walker); err != nil {
		return errors.Wrap(err, "walk exif")
	}
	sort.Slice(walker.entries, func(i, j int) bool { return walker.entries[i].name < walker.entries[j].name })
	for _, e := range walker.entries {
		out.Set(e.name, e.value)
	}

	for _, e := range scanIFDs(raw) {
		if strings.HasPrefix(e.name, thumbnailPrefix) {
			continue
		}
		out.Set(e.name, e.value)
	}
	return nil
}

type entry struct {
	name  string
	value string
}

type namedWalker struct {
	order   binary.ByteOrder
	entries []entry
}

func (w *namedWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w.entries = append(w.entries, entry{name: string(name), value: tagText(tag, w.order)})
	return nil
}

// ifd is one directory visited by the low-level scan.
type ifd struct {
	label string
	names map[uint16]string
	dir   *tiff.Dir
}

// scanIFDs walks IFD0, IFD1 and the EXIF, GPS and Interoperability
// sub-directories, naming tags "<IFD label> <tag name>". Errors end the scan
// quietly; pass one already holds the important tags.
func scanIFDs(raw []byte) []entry {
	t, err := tiff.Decode(bytes.NewReader(raw))
	if err != nil || len(t.Dirs) == 0 {
		logger.Debugf("Low-level EXIF scan skipped: %v", err)
		return nil
	}

	dirs := []ifd{{label: "Image", names: imageTags, dir: t.Dirs[0]}}
	if len(t.Dirs) > 1 {
		dirs = append(dirs, ifd{label: "Thumbnail", names: imageTags, dir: t.Dirs[1]})
	}

	subDirs := []struct {
		pointer uint16
		label   string
		names   map[uint16]string
	}{
		{0x8769, "EXIF", exifTags},
		{0x8825, "GPS", gpsTags},
	}
	for _, sub := range subDirs {
		if d := decodeSubDir(raw, t.Dirs[0], sub.pointer, t.Order); d != nil {
			dirs = append(dirs, ifd{label: sub.label, names: sub.names, dir: d})
		}
	}
	for _, d := range dirs {
		if d.label != "EXIF" {
			continue
		}
		if interop := decodeSubDir(raw, d.dir, 0xA005, t.Order); interop != nil {
			dirs = append(dirs, ifd{label: "Interoperability", names: interopTags, dir: interop})
		}
		break
	}

	var entries []entry
	for _, d := range dirs {
		for _, tag := range d.dir.Tags {
			name, ok := d.names[tag.Id]
			if !ok {
				name = fmt.Sprintf("Tag 0x%04X", tag.Id)
			}
			entries = append(entries, entry{name: d.label + " " + name, value: tagText(tag, t.Order)})
		}
		if d.label == "Thumbnail" {
			if thumb := thumbnail(raw, d.dir); thumb != nil {
				entries = append(entries, entry{name: thumbnailPrefix, value: metadata.Text(thumb)})
			}
		}
	}
	return entries
}

func findTag(d *tiff.Dir, id uint16) *tiff.Tag {
	for _, tag := range d.Tags {
		if tag.Id == id {
			return tag
		}
	}
	return nil
}

func decodeSubDir(raw []byte, parent *tiff.Dir, pointer uint16, order binary.ByteOrder) *tiff.Dir {
	tag := findTag(parent, pointer)
	if tag == nil {
		return nil
	}
	offset, err := tag.Int64(0)
	if err != nil || offset <= 0 || offset >= int64(len(raw)) {
		return nil
	}
	r := bytes.NewReader(raw)
	if _, err := r.Seek(offset, 0); err != nil {
		return nil
	}
	d, _, err := tiff.DecodeDir(r, order)
	if err != nil {
		logger.Debugf("Could not decode sub-IFD 0x%04X: %v", pointer, err)
		return nil
	}
	return d
}

func thumbnail(raw []byte, d *tiff.Dir) []byte {
	offTag, lenTag := findTag(d, 0x0201), findTag(d, 0x0202)
	if offTag == nil || lenTag == nil {
		return nil
	}
	off, err1 := offTag.Int64(0)
	n, err2 := lenTag.Int64(0)
	if err1 != nil || err2 != nil || off < 0 || n <= 0 || off+n > int64(len(raw)) {
		return nil
	}
	return raw[off : off+n]
}

// tagText renders a tag value as text.
func tagText(tag *tiff.Tag, order binary.ByteOrder) string {
	switch tag.Id {
	case 0x9286:
		return userComment(tag.Val, order)
	case 0x9C9B, 0x9C9C, 0x9C9D, 0x9C9E, 0x9C9F:
		return utf16Text(tag.Val, binary.LittleEndian)
	}

	switch tag.Format() {
	case tiff.StringVal:
		if s, err := tag.StringVal(); err == nil {
			return s
		}
	case tiff.UndefVal:
		if len(tag.Val) > maxBinaryText {
			return fmt.Sprintf("[%d bytes of binary data]", len(tag.Val))
		}
		return metadata.Text(tag.Val)
	}
	return strings.Trim(tag.String(), `"`)
}

// userComment decodes the EXIF UserComment, whose first eight bytes name the
// character code.
func userComment(val []byte, order binary.ByteOrder) string {
	if len(val) < 8 {
		return metadata.Text(val)
	}
	code, body := string(bytes.TrimRight(val[:8], "\x00 ")), val[8:]
	switch code {
	case "UNICODE":
		return utf16Text(body, order)
	case "ASCII", "":
		return strings.TrimRight(metadata.Text(body), " ")
	default:
		return metadata.Text(val)
	}
}

func utf16Text(b []byte, order binary.ByteOrder) string {
	endian := unicode.LittleEndian
	if order == binary.BigEndian {
		endian = unicode.BigEndian
	}
	s, err := unicode.UTF16(endian, unicode.UseBOM).NewDecoder().Bytes(b)
	if err != nil {
		return metadata.Text(b)
	}
	return strings.TrimRight(string(s), "\x00")
}
