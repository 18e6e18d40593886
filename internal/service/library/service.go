// Package library manages uploaded files and their presence in the
// vector index.
package library

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/finchat/finchat/files"
	"github.com/finchat/finchat/index"
	"github.com/finchat/finchat/ingest"
)

type Service struct {
	files  files.Store
	index  index.Index
	logger *slog.Logger
}

// Upload validates content as tabular text and stores the file record.
// Nothing is indexed until Push.
func (s *Service) Upload(ctx context.Context, fileName string, content []byte) error {
	if _, err := ingest.Ingest(fileName, bytes.NewReader(content)); err != nil {
		return err
	}

	if err := s.files.Save(ctx, fileName, content); err != nil {
		return fmt.Errorf("save %s: %w", fileName, err)
	}

	return nil
}

func (s *Service) ListFiles(ctx context.Context) ([]string, error) {
	return s.files.List(ctx)
}

// Push ingests the named files from the record store and upserts their
// documents into the vector index.
func (s *Service) Push(ctx context.Context, fileNames []string) error {
	for _, fileName := range fileNames {
		content, err := s.files.Fetch(ctx, fileName)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", fileName, err)
		}

		docs, err := ingest.Ingest(fileName, bytes.NewReader(content))
		if err != nil {
			return err
		}

		if err := s.index.Upsert(ctx, docs); err != nil {
			return fmt.Errorf("index %s: %w", fileName, err)
		}

		s.logger.InfoContext(ctx, "pushed file to index", "file_name", fileName, "documents", len(docs))
	}

	return nil
}

// Remove deletes the named files' vectors from the index but keeps the
// file records. Returns the total number of vectors removed.
func (s *Service) Remove(ctx context.Context, fileNames []string) (int, error) {
	total := 0
	for _, fileName := range fileNames {
		deleted, err := s.index.DeleteByFile(ctx, fileName)
		if err != nil {
			return total, fmt.Errorf("remove %s from index: %w", fileName, err)
		}
		total += deleted
	}

	return total, nil
}

// DeleteFile removes a file's record and cascades to its index entries.
// Unknown files are a no-op reporting zero.
func (s *Service) DeleteFile(ctx context.Context, fileName string) (int, error) {
	if _, err := s.files.Delete(ctx, fileName); err != nil {
		return 0, fmt.Errorf("delete %s: %w", fileName, err)
	}

	deleted, err := s.index.DeleteByFile(ctx, fileName)
	if err != nil {
		return 0, fmt.Errorf("remove %s from index: %w", fileName, err)
	}

	return deleted, nil
}

func New(fileStore files.Store, idx index.Index, logger *slog.Logger) *Service {
	if fileStore == nil {
		panic("file store is required")
	}

	if idx == nil {
		panic("index is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		files:  fileStore,
		index:  idx,
		logger: logger,
	}
}
