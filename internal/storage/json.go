package storage

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/types"
)

// JSONOutput represents the JSON report structure
type JSONOutput struct {
	LastUpdated time.Time          `json:"last_updated"`
	Stats       types.StorageStats `json:"stats"`
	Files       []types.FileResult `json:"files"`
}

// JSONStorage implements the Storage interface using a JSON file
type JSONStorage struct {
	filePath  string
	data      JSONOutput
	pathIndex map[string]int
	mutex     sync.RWMutex
}

// New creates a new JSONStorage. Results already in filePath are kept, and
// replaced when the same path is stored again.
func New(filePath string) (*JSONStorage, error) {
	now := time.Now()
	storage := &JSONStorage{
		filePath:  filePath,
		pathIndex: make(map[string]int),
		data: JSONOutput{
			LastUpdated: now,
			Stats:       newStats(now),
			Files:       make([]types.FileResult, 0),
		},
	}

	// Try to load existing data
	if _, err := os.Stat(filePath); err == nil {
		if err := storage.loadExistingData(); err != nil {
			return nil, errors.Wrap(err, "failed to load existing report")
		}
	}

	return storage, nil
}

func newStats(now time.Time) types.StorageStats {
	return types.StorageStats{
		StartTime:     now,
		LastUpdatedAt: now,
		FilesByFormat: make(map[string]int),
		FilesByAction: make(map[string]int),
	}
}

// Store records a file's result. A path stored twice keeps the latest result.
func (s *JSONStorage) Store(result types.FileResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if i, ok := s.pathIndex[result.Path]; ok {
		s.data.Files[i] = result
	} else {
		s.pathIndex[result.Path] = len(s.data.Files)
		s.data.Files = append(s.data.Files, result)
	}
	s.data.LastUpdated = time.Now()
	s.rebuildStats()
	return nil
}

// rebuildStats recomputes counters from the stored files
func (s *JSONStorage) rebuildStats() {
	stats := s.data.Stats
	stats.FilesStored = len(s.data.Files)
	stats.FilesWithAI = 0
	stats.Failures = 0
	stats.FilesByFormat = make(map[string]int)
	stats.FilesByAction = make(map[string]int)
	for _, f := range s.data.Files {
		if f.Candidates.Len() > 0 {
			stats.FilesWithAI++
		}
		if f.Failed() {
			stats.Failures++
		}
		if f.Format != "" {
			stats.FilesByFormat[f.Format]++
		}
		if f.Action != "" {
			stats.FilesByAction[string(f.Action)]++
		}
	}
	stats.LastUpdatedAt = s.data.LastUpdated
	s.data.Stats = stats
}

// Close sorts the results and writes the report
func (s *JSONStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	s.data.LastUpdated = now
	s.rebuildStats()
	s.data.Stats.EndTime = now

	logger.Debugf("Writing report with %d files (%d with AI metadata, %d failed) to %s",
		s.data.Stats.FilesStored, s.data.Stats.FilesWithAI, s.data.Stats.Failures, s.filePath)

	return s.saveToFile()
}

// Stats returns storage statistics
func (s *JSONStorage) Stats() types.StorageStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data.Stats
}

// loadExistingData loads a previous report from the JSON file
func (s *JSONStorage) loadExistingData() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	var output JSONOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return err
	}

	start := s.data.Stats.StartTime
	s.data.Files = make([]types.FileResult, 0, len(output.Files))
	for _, f := range output.Files {
		if i, ok := s.pathIndex[f.Path]; ok {
			s.data.Files[i] = f
			continue
		}
		s.pathIndex[f.Path] = len(s.data.Files)
		s.data.Files = append(s.data.Files, f)
	}
	s.rebuildStats()
	s.data.Stats.StartTime = start

	logger.Debugf("Loaded %d existing results from %s", len(s.data.Files), s.filePath)
	return nil
}

// saveToFile saves the current data to the JSON file
func (s *JSONStorage) saveToFile() error {
	s.sortFiles()

	file, err := os.Create(s.filePath)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(s.data)
}

// sortFiles sorts the results by path and reindexes them
func (s *JSONStorage) sortFiles() {
	sort.Slice(s.data.Files, func(i, j int) bool {
		return s.data.Files[i].Path < s.data.Files[j].Path
	})
	for i, f := range s.data.Files {
		s.pathIndex[f.Path] = i
	}
}
