package index

import (
	"context"
	"errors"
)

// ErrEmptyIndex is returned by Query when no documents have been indexed.
var ErrEmptyIndex = errors.New("no documents in index")

// Document is one retrievable chunk of ingested file content.
type Document struct {
	Id       string `json:"id"`
	Text     string `json:"text"`
	FileName string `json:"file_name"`
}

// Match is a retrieved document with its similarity score, best first.
type Match struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

type Index interface {
	// Upsert replaces all entries of each document's file and inserts the
	// given documents, so re-pushing a file never duplicates embeddings.
	Upsert(ctx context.Context, docs []Document) error
	// Query returns up to k nearest neighbors by embedding similarity.
	Query(ctx context.Context, text string, k int) ([]Match, error)
	// DeleteByFile removes all entries whose file name matches and reports
	// how many were removed. Unknown files report zero.
	DeleteByFile(ctx context.Context, fileName string) (int, error)
}
