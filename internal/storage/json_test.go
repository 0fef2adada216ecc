package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
	"github.com/deploymenttheory/go-genmeta/internal/types"
)

func candidates(kv ...string) *metadata.Map {
	m := metadata.New()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

func readReport(t *testing.T, path string) JSONOutput {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out JSONOutput
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestJSONStorageSortsAndDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	s, err := New(path)
	require.NoError(t, err)

	require.NoError(t, s.Store(types.FileResult{Path: "b.png", Format: "png", Action: types.ActionDisplay,
		Candidates: candidates("PNG.parameters", "Steps: 20, prompt: cat")}))
	require.NoError(t, s.Store(types.FileResult{Path: "a.jpg", Format: "jpeg", Action: types.ActionDisplay}))
	require.NoError(t, s.Store(types.FileResult{Path: "b.png", Format: "png", Action: types.ActionRemove,
		Output: "b.png.backup"}))
	require.NoError(t, s.Store(types.FileResult{Path: "c.tif", Format: "tiff", Action: types.ActionRemove,
		Error: "decode tiff: broken"}))
	require.NoError(t, s.Close())

	out := readReport(t, path)
	require.Len(t, out.Files, 3)
	assert.Equal(t, "a.jpg", out.Files[0].Path)
	assert.Equal(t, "b.png", out.Files[1].Path)
	assert.Equal(t, types.ActionRemove, out.Files[1].Action)
	assert.Equal(t, "b.png.backup", out.Files[1].Output)
	assert.Equal(t, "c.tif", out.Files[2].Path)

	assert.Equal(t, 3, out.Stats.FilesStored)
	assert.Equal(t, 0, out.Stats.FilesWithAI)
	assert.Equal(t, 1, out.Stats.Failures)
	assert.Equal(t, map[string]int{"png": 1, "jpeg": 1, "tiff": 1}, out.Stats.FilesByFormat)
	assert.Equal(t, map[string]int{"display": 1, "remove": 2}, out.Stats.FilesByAction)
	assert.False(t, out.Stats.EndTime.IsZero())
}

func TestJSONStorageKeepsCandidateOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Store(types.FileResult{Path: "x.png",
		Candidates: candidates("PNG.workflow", "{}", "PNG.prompt", "{}", "PNG.app", "{}")}))
	require.NoError(t, s.Close())
	assert.Equal(t, 1, s.Stats().FilesWithAI)

	out := readReport(t, path)
	require.Len(t, out.Files, 1)
	assert.Equal(t, []string{"PNG.workflow", "PNG.prompt", "PNG.app"}, out.Files[0].Candidates.Keys())
}

func TestJSONStorageMergesExistingReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Store(types.FileResult{Path: "a.png", Action: types.ActionDisplay}))
	require.NoError(t, first.Store(types.FileResult{Path: "b.png", Action: types.ActionDisplay}))
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Stats().FilesStored)
	require.NoError(t, second.Store(types.FileResult{Path: "a.png", Action: types.ActionSave, Output: "a.txt"}))
	require.NoError(t, second.Close())

	out := readReport(t, path)
	require.Len(t, out.Files, 2)
	assert.Equal(t, types.ActionSave, out.Files[0].Action)
	assert.Equal(t, types.ActionDisplay, out.Files[1].Action)
}

func TestJSONStorageRejectsCorruptReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	var s Storage = Discard{}
	assert.NoError(t, s.Store(types.FileResult{Path: "a.png"}))
	assert.NoError(t, s.Close())
	assert.Equal(t, 0, s.Stats().FilesStored)
}
