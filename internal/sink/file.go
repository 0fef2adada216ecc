// Package sink exports classified generation metadata to a sidecar file,
// the system clipboard or the console.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
	"github.com/deploymenttheory/go-genmeta/internal/workflow"
)

// Kind is the form an export took.
type Kind string

const (
	KindWorkflow Kind = "workflow"
	KindJSON     Kind = "json"
	KindText     Kind = "text"
)

// ErrNothingToExport is returned when the candidate map is empty.
var ErrNothingToExport = errors.New("no AI generation metadata to export")

// TextHeader starts every text export.
const TextHeader = "AI Generation Metadata for: "

// maxUniqueAttempts bounds the retry loop when another process keeps taking
// the chosen name.
const maxUniqueAttempts = 100

type envelope struct {
	SourceFile   string        `json:"source_file"`
	MetadataTags *metadata.Map `json:"metadata_tags"`
}

// SaveFile writes candidates next to imagePath and returns the path written.
// A detected workflow is saved as its own pretty-printed JSON; if any value
// is JSON the whole map goes into a JSON envelope; otherwise a text file is
// written. Existing files are never overwritten.
func SaveFile(imagePath string, candidates *metadata.Map) (string, Kind, error) {
	if candidates.Len() == 0 {
		return "", "", ErrNothingToExport
	}

	base := stem(imagePath)
	data, kind, err := render(imagePath, candidates)
	if err != nil {
		return "", "", err
	}

	ext := ".json"
	if kind == KindText {
		ext = ".txt"
	}
	path, err := writeNew(base+ext, data)
	if err != nil {
		return "", "", err
	}
	return path, kind, nil
}

// stem drops the extension from path. Leading dots of the file name do not
// start an extension, so "dir/.png" is its own stem.
func stem(path string) string {
	dir, name := filepath.Split(path)
	trimmed := strings.TrimLeft(name, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return path
	}
	return dir + name[:len(name)-len(trimmed)+i]
}

func render(imagePath string, candidates *metadata.Map) ([]byte, Kind, error) {
	if g, ok := workflow.Detect(candidates); ok {
		data, err := g.Indent()
		if err != nil {
			return nil, "", errors.Wrapf(err, "format workflow from %s", g.Tag)
		}
		return append(data, '\n'), KindWorkflow, nil
	}

	if anyJSON(candidates) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err := enc.Encode(envelope{SourceFile: filepath.Base(imagePath), MetadataTags: candidates})
		if err != nil {
			return nil, "", errors.Wrap(err, "encode metadata")
		}
		return buf.Bytes(), KindJSON, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%s\n", TextHeader, filepath.Base(imagePath))
	buf.WriteString(strings.Repeat("=", 50))
	buf.WriteString("\n\n")
	candidates.Range(func(tag, value string) bool {
		fmt.Fprintf(&buf, "%s: %s\n", tag, value)
		return true
	})
	return buf.Bytes(), KindText, nil
}

func anyJSON(candidates *metadata.Map) bool {
	found := false
	candidates.Range(func(_, value string) bool {
		found = workflow.IsJSON(value)
		return !found
	})
	return found
}

// UniquePath returns path if nothing exists there, otherwise the first of
// name_1.ext, name_2.ext, ... that is unused.
func UniquePath(path string) string {
	if !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// writeNew creates a file at the first unused name derived from path.
func writeNew(path string, data []byte) (string, error) {
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		target := UniquePath(path)
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "create export file")
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(target)
			return "", errors.Wrap(err, "write export file")
		}
		if err := f.Close(); err != nil {
			os.Remove(target)
			return "", errors.Wrap(err, "close export file")
		}
		return target, nil
	}
	return "", errors.Errorf("no free file name for %s", path)
}
