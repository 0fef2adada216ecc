package types

import (
	"time"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// Action is what was done with a file.
type Action string

const (
	ActionDisplay Action = "display"
	ActionSave    Action = "save"
	ActionCopy    Action = "copy"
	ActionRemove  Action = "remove"
	ActionSkip    Action = "skip"
)

// FileResult represents one processed image file
type FileResult struct {
	Path       string        `json:"path"`
	Format     string        `json:"format"`
	TagCount   int           `json:"tag_count"`
	Candidates *metadata.Map `json:"candidates"`
	Action     Action        `json:"action"`
	Output     string        `json:"output,omitempty"`
	Warning    string        `json:"warning,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Failed reports whether the file's action did not complete.
func (r FileResult) Failed() bool {
	return r.Error != ""
}

// StorageStats holds report statistics
type StorageStats struct {
	FilesStored   int            `json:"files_stored"`
	FilesWithAI   int            `json:"files_with_ai_metadata"`
	Failures      int            `json:"failures"`
	FilesByFormat map[string]int `json:"files_by_format"`
	FilesByAction map[string]int `json:"files_by_action"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
}
