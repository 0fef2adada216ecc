package sink

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

const comfyWorkflow = `{"3": {"class_type": "KSampler", "inputs": {"seed": 42, "cfg": 7.0}}, "4": {"class_type": "CheckpointLoaderSimple"}}`

func mapOf(kv ...string) *metadata.Map {
	m := metadata.New()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

func TestSaveFileWorkflow(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "render.png")
	candidates := mapOf("PNG.prompt", `{"1": {"inputs": {}}}`, "PNG.workflow", comfyWorkflow)

	path, kind, err := SaveFile(image, candidates)
	require.NoError(t, err)
	assert.Equal(t, KindWorkflow, kind)
	assert.Equal(t, filepath.Join(dir, "render.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, comfyWorkflow, string(data))
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"3\": {\n    \"class_type\": \"KSampler\""))
	assert.NotContains(t, string(data), "source_file")
}

func TestSaveFileEnvelope(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "swarm.png")
	candidates := mapOf(
		"PNG.sui_image_params", `{"prompt": "a <red> fox", "steps": 30}`,
		"Software", "StableSwarmUI",
	)

	path, kind, err := SaveFile(image, candidates)
	require.NoError(t, err)
	assert.Equal(t, KindJSON, kind)
	assert.Equal(t, filepath.Join(dir, "swarm.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "a <red> fox")

	var got struct {
		SourceFile   string        `json:"source_file"`
		MetadataTags *metadata.Map `json:"metadata_tags"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "swarm.png", got.SourceFile)
	assert.Equal(t, []string{"PNG.sui_image_params", "Software"}, got.MetadataTags.Keys())
}

func TestSaveFileText(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "photo.jpg")
	candidates := mapOf("Software", "Adobe Photoshop", "ImageDescription", "made with stable diffusion")

	path, kind, err := SaveFile(image, candidates)
	require.NoError(t, err)
	assert.Equal(t, KindText, kind)
	assert.Equal(t, filepath.Join(dir, "photo.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "AI Generation Metadata for: photo.jpg\n" +
		strings.Repeat("=", 50) + "\n\n" +
		"Software: Adobe Photoshop\n" +
		"ImageDescription: made with stable diffusion\n"
	assert.Equal(t, want, string(data))
}

func TestSaveFileNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "photo.jpg")
	for _, name := range []string{"photo.txt", "photo_1.txt", "photo_3.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("keep"), 0o644))
	}

	path, _, err := SaveFile(image, mapOf("Software", "GIMP"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo_2.txt"), path)

	for _, name := range []string{"photo.txt", "photo_1.txt", "photo_3.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"dir/a.png", "dir/a"},
		{"dir/a.b.png", "dir/a.b"},
		{"dir/.png", "dir/.png"},
		{"dir/..a.png", "dir/..a"},
		{"dir/noext", "dir/noext"},
		{"dir.d/noext", "dir.d/noext"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), stem(filepath.FromSlash(tt.path)))
		})
	}
}

func TestSaveFileDotfile(t *testing.T) {
	dir := t.TempDir()
	path, kind, err := SaveFile(filepath.Join(dir, ".png"), mapOf("Software", "GIMP"))
	require.NoError(t, err)
	assert.Equal(t, KindText, kind)
	assert.Equal(t, filepath.Join(dir, ".png.txt"), path)
}

func TestSaveFileNothingToExport(t *testing.T) {
	dir := t.TempDir()
	_, _, err := SaveFile(filepath.Join(dir, "a.png"), metadata.New())
	assert.ErrorIs(t, err, ErrNothingToExport)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "x.json")
	assert.Equal(t, base, UniquePath(base))

	require.NoError(t, os.WriteFile(base, nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "x_1.json"), UniquePath(base))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x_1.json"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "x_2.json"), UniquePath(base))
}

type recordingClipboard struct {
	texts []string
	err   error
}

func (r *recordingClipboard) WriteText(text string) error {
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func TestCopy(t *testing.T) {
	tests := []struct {
		description string
		candidates  *metadata.Map
		kind        Kind
		text        string
	}{
		{
			description: "workflow wins over earlier json",
			candidates:  mapOf("PNG.prompt", `{"a": 1}`, "PNG.workflow", `{"nodes": []}`),
			kind:        KindWorkflow,
			text:        "{\n  \"nodes\": []\n}",
		},
		{
			description: "first json value",
			candidates:  mapOf("Software", "SwarmUI", "PNG.params", `{"steps":20}`, "PNG.other", `{"b":2}`),
			kind:        KindJSON,
			text:        "{\n  \"steps\": 20\n}",
		},
		{
			description: "scalar json counts",
			candidates:  mapOf("ImageDescription", "42"),
			kind:        KindJSON,
			text:        "42",
		},
		{
			description: "plain text lines",
			candidates:  mapOf("Software", "ComfyUI", "Artist", "someone"),
			kind:        KindText,
			text:        "Software: ComfyUI\nArtist: someone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			cb := &recordingClipboard{}
			kind, err := Copy(cb, tt.candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			require.Len(t, cb.texts, 1)
			assert.Equal(t, tt.text, cb.texts[0])
		})
	}
}

func TestCopyNothingToExport(t *testing.T) {
	cb := &recordingClipboard{}
	_, err := Copy(cb, metadata.New())
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Empty(t, cb.texts)
}

func TestJSONSource(t *testing.T) {
	assert.Equal(t, "PNG.b", JSONSource(mapOf("PNG.a", "text", "PNG.b", `[1]`, "PNG.c", `{}`)))
	assert.Equal(t, "", JSONSource(mapOf("PNG.a", "text")))
}

func TestChainFallsBack(t *testing.T) {
	first := &recordingClipboard{err: errors.New("no display")}
	second := &recordingClipboard{}
	require.NoError(t, Chain{first, second}.WriteText("hello"))
	assert.Equal(t, []string{"hello"}, second.texts)
}

func TestChainUnavailable(t *testing.T) {
	err := Chain{&recordingClipboard{err: errors.New("missing")}}.WriteText("x")
	assert.ErrorIs(t, err, ErrClipboardUnavailable)
	assert.Contains(t, err.Error(), "missing")

	assert.ErrorIs(t, Chain{}.WriteText("x"), ErrClipboardUnavailable)
}

func TestHostWithoutClipboard(t *testing.T) {
	restoreLook, restoreTTY := lookPath, openTTY
	t.Cleanup(func() { lookPath, openTTY = restoreLook, restoreTTY })
	lookPath = func(name string) (string, error) { return "", errors.Errorf("%s: not found", name) }
	openTTY = func() (io.WriteCloser, error) { return nil, errors.New("no tty") }

	for _, goos := range []string{"linux", "darwin", "windows", "freebsd"} {
		t.Run(goos, func(t *testing.T) {
			_, err := Copy(ForHost(goos), mapOf("Software", "ComfyUI"))
			assert.ErrorIs(t, err, ErrClipboardUnavailable)
		})
	}
}

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error { return nil }

func TestTerminalWritesOSC52(t *testing.T) {
	restoreTTY, restoreEnv := openTTY, getenv
	t.Cleanup(func() { openTTY, getenv = restoreTTY, restoreEnv })

	tests := []struct {
		description string
		env         map[string]string
		prefix      string
	}{
		{"plain terminal", map[string]string{"TERM": "xterm-256color"}, "\x1b]52;c;"},
		{"tmux", map[string]string{"TMUX": "/tmp/tmux-0/default,1,0", "TERM": "screen"}, "\x1bPtmux;"},
		{"screen", map[string]string{"TERM": "screen-256color"}, "\x1bP"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			tty := &bufferCloser{}
			openTTY = func() (io.WriteCloser, error) { return tty, nil }
			getenv = func(key string) string { return tt.env[key] }

			require.NoError(t, Terminal{}.WriteText("hi"))
			assert.True(t, strings.HasPrefix(tty.String(), tt.prefix), "%q", tty.String())
			assert.Contains(t, tty.String(), "aGk=")
		})
	}
}

func TestForHost(t *testing.T) {
	assert.Equal(t, Chain{Command{Name: "clip"}}, ForHost("windows"))
	assert.Equal(t, Chain{Command{Name: "pbcopy"}, Terminal{}}, ForHost("darwin"))

	linux := ForHost("linux")
	require.Len(t, linux, 4)
	assert.Equal(t, Command{Name: "xclip", Args: []string{"-selection", "clipboard"}}, linux[1])
	assert.Equal(t, Terminal{}, linux[3])
}

func TestConsoleAIOnly(t *testing.T) {
	var out bytes.Buffer
	c := &Console{Out: &out, AIOnly: true, NoColor: true}
	raw := mapOf("PNG.parameters", "Steps: 20, CFG scale: 7, Sampler: Euler, prompt: a cat", "PNG.Title", "x")
	candidates := mapOf("PNG.parameters", "Steps: 20, CFG scale: 7, Sampler: Euler, prompt: a cat")

	c.Show("cat.png", raw, candidates)

	var entries []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "  ") {
			entries = append(entries, line)
		}
	}
	assert.Equal(t, []string{"  PNG.parameters: Steps: 20, CFG scale: 7, Sampler: Euler, prompt: a cat"}, entries)
	assert.Contains(t, out.String(), "AI Generation Metadata in cat.png:")
}

func TestConsoleAIOnlyEmpty(t *testing.T) {
	var out bytes.Buffer
	(&Console{Out: &out, AIOnly: true, NoColor: true}).Show("a.png", mapOf("PNG.Title", "x"), metadata.New())
	assert.Empty(t, out.String())

	(&Console{Out: &out, AIOnly: true, Verbose: true, NoColor: true}).Show("a.png", mapOf("PNG.Title", "x"), metadata.New())
	assert.Equal(t, "\na.png: No AI generation metadata detected\n", out.String())
}

func TestConsoleFull(t *testing.T) {
	var out bytes.Buffer
	long := strings.Repeat("é", 120)
	raw := mapOf("Software", "ComfyUI", "Artist", long, "Make", "Canon")
	candidates := mapOf("Software", "ComfyUI", "Artist", long)

	(&Console{Out: &out, NoColor: true}).Show("img.jpg", raw, candidates)
	text := out.String()

	assert.Contains(t, text, "File: img.jpg")
	aiAt := strings.Index(text, "POTENTIAL AI GENERATION METADATA:")
	allAt := strings.Index(text, "ALL EXIF DATA (3 tags):")
	require.True(t, aiAt >= 0 && allAt > aiAt)

	assert.Contains(t, text[aiAt:allAt], "Artist: "+long+"\n")
	listing := text[allAt:]
	assert.Contains(t, listing, "Artist: "+strings.Repeat("é", 97)+"...\n")
	assert.Less(t, strings.Index(listing, "Artist:"), strings.Index(listing, "Make:"))
	assert.Less(t, strings.Index(listing, "Make:"), strings.Index(listing, "Software:"))
}

func TestConsoleNoMetadata(t *testing.T) {
	var out bytes.Buffer
	(&Console{Out: &out, NoColor: true}).Show("plain.png", metadata.New(), metadata.New())
	assert.Contains(t, out.String(), "No EXIF data found.")
	assert.NotContains(t, out.String(), "ALL EXIF DATA")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	exact := strings.Repeat("a", 100)
	assert.Equal(t, exact, Truncate(exact, 100))
	assert.Equal(t, strings.Repeat("a", 97)+"...", Truncate(exact+"b", 100))
}
