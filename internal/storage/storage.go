package storage

import (
	"github.com/deploymenttheory/go-genmeta/internal/types"
)

// Storage defines the interface for recording per-file results
type Storage interface {
	// Store records a processed file's result
	Store(result types.FileResult) error

	// Close finalizes the storage
	Close() error

	// Stats returns storage statistics
	Stats() types.StorageStats
}

// Discard is a Storage that keeps nothing.
type Discard struct{}

func (Discard) Store(types.FileResult) error { return nil }
func (Discard) Close() error                 { return nil }
func (Discard) Stats() types.StorageStats    { return types.StorageStats{} }
