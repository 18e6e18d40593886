// Package files stores uploaded-file records.
package files

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced file has no record.
var ErrNotFound = errors.New("file not found")

// Record is one uploaded file, stored inline.
type Record struct {
	FileName   string    `json:"file_name"`
	Content    []byte    `json:"content,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Store interface {
	// Save inserts or replaces the record for a file name.
	Save(ctx context.Context, fileName string, content []byte) error
	// List returns the stored file names, sorted.
	List(ctx context.Context) ([]string, error)
	// Fetch returns a file's content or ErrNotFound.
	Fetch(ctx context.Context, fileName string) ([]byte, error)
	// Delete removes a file's record and reports how many records were
	// removed; unknown files report zero without error.
	Delete(ctx context.Context, fileName string) (int, error)
}
