package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-genmeta/internal/container"
	"github.com/deploymenttheory/go-genmeta/internal/format"
	"github.com/deploymenttheory/go-genmeta/internal/imagetest"
)

func TestReadPNGTextChunks(t *testing.T) {
	dir := t.TempDir()
	data := imagetest.PNG(t, imagetest.Gradient(4, 4),
		imagetest.Text("parameters", "Steps: 20, CFG scale: 7, Sampler: Euler, prompt: a cat"),
		imagetest.Text("Title", "caf\xe9"),
		imagetest.CompressedText("workflow", `{"nodes": []}`),
		imagetest.InternationalText("prompt", "ein Kätzchen", false),
		imagetest.InternationalText("negative_prompt", "blurry", true),
	)
	path := imagetest.Write(t, dir, "gen.png", data)

	m, err := Read(path, format.PNG)
	require.NoError(t, err)

	assert.Equal(t, []string{"PNG.parameters", "PNG.Title", "PNG.workflow", "PNG.prompt", "PNG.negative_prompt"}, m.Keys())
	v, _ := m.Get("PNG.Title")
	assert.Equal(t, "café", v)
	v, _ = m.Get("PNG.workflow")
	assert.Equal(t, `{"nodes": []}`, v)
	v, _ = m.Get("PNG.prompt")
	assert.Equal(t, "ein Kätzchen", v)
	v, _ = m.Get("PNG.negative_prompt")
	assert.Equal(t, "blurry", v)
}

func TestReadPNGWithoutText(t *testing.T) {
	path := imagetest.Write(t, t.TempDir(), "plain.png", imagetest.PNG(t, imagetest.Gradient(2, 2)))

	m, err := Read(path, format.PNG)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestReadPNGSkipsBrokenCompressedChunk(t *testing.T) {
	broken := container.Chunk{Type: "zTXt", Data: []byte("workflow\x00\x00not zlib")}
	data := imagetest.PNG(t, imagetest.Gradient(2, 2), broken, imagetest.Text("Software", "x"))
	path := imagetest.Write(t, t.TempDir(), "broken.png", data)

	m, err := Read(path, format.PNG)
	require.NoError(t, err)
	assert.Equal(t, []string{"PNG.Software"}, m.Keys())
}

func TestReadPNGExifChunk(t *testing.T) {
	exif := imagetest.Exif{IFD0: []imagetest.Entry{imagetest.ASCII(0x0131, "Stable Diffusion")}}
	data := imagetest.PNG(t, imagetest.Gradient(2, 2), container.Chunk{Type: "eXIf", Data: exif.TIFF()})
	path := imagetest.Write(t, t.TempDir(), "exif.png", data)

	m, err := Read(path, format.PNG)
	require.NoError(t, err)
	v, ok := m.Get("Software")
	assert.True(t, ok)
	assert.Equal(t, "Stable Diffusion", v)
}

func exifJPEG(t *testing.T, exif imagetest.Exif) []byte {
	t.Helper()
	return imagetest.JPEG(t, imagetest.Gradient(8, 8), container.ExifSegment(exif.TIFF()))
}

func TestReadJPEGExif(t *testing.T) {
	exif := imagetest.Exif{
		IFD0: []imagetest.Entry{
			imagetest.ASCII(0x0131, "Adobe Photoshop"),
			imagetest.ASCII(0x013B, "Jane"),
			imagetest.Short(0x0112, 1),
		},
		ExifIFD: []imagetest.Entry{
			imagetest.Undefined(0x9286, append([]byte("ASCII\x00\x00\x00"), "a long prompt"...)),
		},
	}
	path := imagetest.Write(t, t.TempDir(), "photo.jpg", exifJPEG(t, exif))

	m, err := Read(path, format.JPEG)
	require.NoError(t, err)

	for tag, want := range map[string]string{
		"Software":          "Adobe Photoshop",
		"Artist":            "Jane",
		"UserComment":       "a long prompt",
		"Image Software":    "Adobe Photoshop",
		"Image Artist":      "Jane",
		"EXIF UserComment":  "a long prompt",
		"Image Orientation": "1",
	} {
		got, ok := m.Get(tag)
		if assert.True(t, ok, tag) {
			assert.Equal(t, want, got, tag)
		}
	}
}

func TestReadJPEGExcludesThumbnail(t *testing.T) {
	exif := imagetest.Exif{
		IFD0:      []imagetest.Entry{imagetest.ASCII(0x0131, "camera fw")},
		Thumbnail: []byte{0xFF, 0xD8, 0xFF, 0xD9},
	}
	path := imagetest.Write(t, t.TempDir(), "thumb.jpg", exifJPEG(t, exif))

	m, err := Read(path, format.JPEG)
	require.NoError(t, err)

	_, ok := m.Get("Thumbnail JPEGInterchangeFormatLength")
	assert.True(t, ok)
	for _, k := range m.Keys() {
		assert.False(t, strings.HasPrefix(k, "JPEGThumbnail"), k)
	}
}

func TestReadJPEGWithoutExif(t *testing.T) {
	path := imagetest.Write(t, t.TempDir(), "plain.jpg", imagetest.JPEG(t, imagetest.Gradient(8, 8)))

	m, err := Read(path, format.JPEG)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestReadTIFF(t *testing.T) {
	exif := imagetest.Exif{IFD0: []imagetest.Entry{
		imagetest.ASCII(0x0131, "ComfyUI"),
		imagetest.ASCII(0x010E, "a portrait"),
	}}
	path := imagetest.Write(t, t.TempDir(), "scan.tif", exif.TIFF())

	m, err := Read(path, format.TIFF)
	require.NoError(t, err)
	v, _ := m.Get("Software")
	assert.Equal(t, "ComfyUI", v)
	v, _ = m.Get("ImageDescription")
	assert.Equal(t, "a portrait", v)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		data   []byte
		format format.Format
	}{
		{"corrupt png", []byte("definitely not a png"), format.PNG},
		{"corrupt jpeg", []byte{0xFF, 0xD8, 0x00, 0x00, 0x00}, format.JPEG},
		{"corrupt tiff", []byte("II*\x00\xff\xff\xff\xff"), format.TIFF},
		{"unknown format", []byte("x"), format.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := imagetest.Write(t, dir, strings.ReplaceAll(tt.name, " ", "_"), tt.data)
			m, err := Read(path, tt.format)
			require.NotNil(t, m)
			assert.Equal(t, 0, m.Len())

			var readErr *ReadError
			require.ErrorAs(t, err, &readErr)
			assert.Equal(t, path, readErr.Path)
		})
	}

	_, err := Read(filepath.Join(dir, "missing.png"), format.PNG)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUserComment(t *testing.T) {
	assert.Equal(t, "hi", userComment(append([]byte("ASCII\x00\x00\x00"), "hi   "...), nil))
	assert.Equal(t, "hi", userComment(append(make([]byte, 8), "hi"...), nil))
	assert.Equal(t, "hé", userComment(append([]byte("UNICODE\x00"), 'h', 0, 0xE9, 0), nil))
	assert.Equal(t, "short", userComment([]byte("short"), nil))
}
