package processor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/classifier"
	"github.com/deploymenttheory/go-genmeta/internal/config"
	"github.com/deploymenttheory/go-genmeta/internal/format"
	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/metadata"
	"github.com/deploymenttheory/go-genmeta/internal/reader"
	"github.com/deploymenttheory/go-genmeta/internal/remover"
	"github.com/deploymenttheory/go-genmeta/internal/sink"
	"github.com/deploymenttheory/go-genmeta/internal/storage"
	"github.com/deploymenttheory/go-genmeta/internal/types"
)

// Batch-level failures. Run returns these before touching any file.
var (
	ErrNoFiles          = errors.New("no files found matching the specified patterns")
	ErrNoSupportedFiles = errors.New("no supported image files found")
	ErrCopyMultiple     = errors.New("--copy option can only be used with a single file")
)

// Stats holds processor statistics
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	Warnings       int
	Errors         int
	StartTime      time.Time
	EndTime        time.Time
}

// Processor runs the read, classify and act pipeline over a batch of files,
// one file at a time.
type Processor struct {
	cfg       *config.Config
	storage   storage.Storage
	console   *sink.Console
	clipboard sink.Clipboard

	stats Stats
}

// New creates a new Processor. Console output goes to out.
func New(cfg *config.Config, store storage.Storage, out io.Writer, cb sink.Clipboard) *Processor {
	if store == nil {
		store = storage.Discard{}
	}
	return &Processor{
		cfg:       cfg,
		storage:   store,
		console:   &sink.Console{Out: out, AIOnly: cfg.AIOnly, Verbose: cfg.Verbose, NoColor: cfg.NoColor},
		clipboard: cb,
	}
}

// Run expands patterns and processes every supported file. Per-file
// failures are logged and recorded; only batch-level problems are returned.
func (p *Processor) Run(patterns []string) error {
	p.stats.StartTime = time.Now()
	defer func() { p.stats.EndTime = time.Now() }()

	files := Expand(patterns)
	if len(files) == 0 {
		return ErrNoFiles
	}
	if p.cfg.Copy && len(files) > 1 {
		return ErrCopyMultiple
	}

	var supported, unsupported []string
	for _, f := range files {
		if format.IsSupported(f) {
			supported = append(supported, f)
		} else {
			unsupported = append(unsupported, f)
		}
	}

	if len(unsupported) > 0 {
		logger.Warningf("Skipping %d unsupported files:", len(unsupported))
		for _, f := range unsupported {
			logger.Warningf("  %s", f)
			p.stats.FilesSkipped++
			p.record(types.FileResult{Path: f, Format: string(format.Unknown), Action: types.ActionSkip,
				Warning: format.ErrUnsupported.Error()})
		}
	}
	if len(supported) == 0 {
		return ErrNoSupportedFiles
	}

	logger.Infof("Processing %d image file(s)...", len(supported))
	for _, f := range supported {
		result := p.processFile(f)
		if result.Warning != "" {
			p.stats.Warnings++
		}
		if result.Failed() {
			p.stats.Errors++
		}
		p.stats.FilesProcessed++
		p.record(result)
	}
	return nil
}

func (p *Processor) record(result types.FileResult) {
	if err := p.storage.Store(result); err != nil {
		logger.Errorf("Failed to record result for %s: %v", result.Path, err)
	}
}

// processFile handles one file. A panic in a decoder is reported as that
// file's error.
func (p *Processor) processFile(path string) (result types.FileResult) {
	result = types.FileResult{Path: path, Action: p.action()}
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
			logger.Errorf("Error processing %s: %v", path, r)
		}
	}()

	f, err := format.Detect(path)
	if err != nil {
		result.Error = err.Error()
		logger.Errorf("Error processing %s: %v", path, err)
		return result
	}
	result.Format = string(f)

	raw, err := reader.Read(path, f)
	if err != nil {
		result.Warning = err.Error()
		logger.Warningf("%v", err)
	}
	candidates := classifier.Classify(raw)
	result.TagCount = raw.Len()
	result.Candidates = candidates
	logger.Debugf("%s: %d tags, %d AI generation candidates", path, raw.Len(), candidates.Len())
	candidates.Range(func(tag, value string) bool {
		reason, _ := classifier.Match(tag, value)
		logger.Debugf("  %s: %s", tag, reason)
		return true
	})

	switch result.Action {
	case types.ActionRemove:
		p.remove(&result, raw)
	case types.ActionCopy:
		p.copy(&result, candidates)
	case types.ActionSave:
		p.save(&result, candidates)
	default:
		p.console.Show(path, raw, candidates)
	}
	return result
}

func (p *Processor) action() types.Action {
	switch {
	case p.cfg.Remove:
		return types.ActionRemove
	case p.cfg.Copy:
		return types.ActionCopy
	case p.cfg.SaveMetadata:
		return types.ActionSave
	}
	return types.ActionDisplay
}

func (p *Processor) remove(result *types.FileResult, raw *metadata.Map) {
	backupPath, err := remover.Remove(result.Path)
	if err != nil {
		result.Error = err.Error()
		logger.Errorf("Error removing metadata from %s: %v", result.Path, err)
		if errors.Is(err, remover.ErrBackupExists) {
			logger.Infof("  Delete %s%s to remove metadata again", result.Path, remover.BackupSuffix)
		}
		return
	}
	result.Output = backupPath
	logger.Successf("Removed metadata from %s", result.Path)
	logger.Infof("  Backup saved as: %s", backupPath)
	if p.cfg.Verbose {
		logger.Infof("Removed %d metadata tags from %s", raw.Len(), result.Path)
	}
}

func (p *Processor) copy(result *types.FileResult, candidates *metadata.Map) {
	kind, err := sink.Copy(p.clipboard, candidates)
	switch {
	case errors.Is(err, sink.ErrNothingToExport):
		result.Warning = err.Error()
		logger.Infof("No AI metadata found to copy")
		return
	case err != nil:
		result.Error = err.Error()
		logger.Errorf("Failed to copy to clipboard: %v", err)
		return
	}

	result.Output = "clipboard"
	switch kind {
	case sink.KindWorkflow:
		logger.Successf("ComfyUI workflow copied to clipboard")
		logger.Infof("  Can be pasted directly into ComfyUI")
	case sink.KindJSON:
		logger.Successf("JSON metadata from '%s' copied to clipboard", sink.JSONSource(candidates))
	default:
		logger.Successf("AI generation metadata copied to clipboard")
	}
}

func (p *Processor) save(result *types.FileResult, candidates *metadata.Map) {
	path, kind, err := sink.SaveFile(result.Path, candidates)
	switch {
	case errors.Is(err, sink.ErrNothingToExport):
		result.Warning = err.Error()
		logger.Infof("No AI metadata found in %s to save", result.Path)
		return
	case err != nil:
		result.Error = err.Error()
		logger.Errorf("Error saving metadata for %s: %v", result.Path, err)
		return
	}

	result.Output = path
	switch kind {
	case sink.KindWorkflow:
		logger.Successf("Saved ComfyUI workflow: %s", path)
		logger.Infof("  Can be loaded directly in ComfyUI")
	case sink.KindJSON:
		logger.Successf("Saved AI metadata as JSON: %s", path)
	default:
		logger.Successf("Saved AI metadata as text: %s", path)
	}
}

// Expand turns command-line arguments into a sorted, de-duplicated list of
// paths. Arguments containing * or ? are matched with filepath.Glob; others
// are taken literally and must exist.
func Expand(patterns []string) []string {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		if strings.ContainsAny(pattern, "*?") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				logger.Warningf("Invalid pattern %s: %v", pattern, err)
				continue
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}
		if _, err := os.Stat(pattern); err != nil {
			logger.Warningf("File not found: %s", pattern)
			continue
		}
		add(pattern)
	}

	sort.Strings(files)
	return files
}

// Stats returns the processing statistics
func (p *Processor) Stats() Stats {
	return p.stats
}

func (p *Processor) Duration() time.Duration {
	if p.stats.StartTime.IsZero() {
		return 0
	}

	if p.stats.EndTime.IsZero() {
		return time.Since(p.stats.StartTime)
	}

	return p.stats.EndTime.Sub(p.stats.StartTime)
}
