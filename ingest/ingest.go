// Package ingest turns uploaded tabular files into retrievable documents.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/finchat/finchat/index"
)

// ErrUnsupportedFormat is returned when content cannot be parsed as
// delimited, row-oriented text.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Ingest parses r as CSV and produces one document per data row. Every
// document's text is the row rendered as "header: value" lines, matching
// the layout the answer prompts expect. All documents carry fileName so
// the index can later delete them as a unit. Ingest has no side effects.
func Ingest(fileName string, r io.Reader) ([]index.Document, error) {
	reader := csv.NewReader(r)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, fileName, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrUnsupportedFormat, fileName)
	}

	header := records[0]

	docs := make([]index.Document, 0, len(records)-1)
	for _, row := range records[1:] {
		var b strings.Builder
		for i, value := range row {
			if i < len(header) {
				b.WriteString(strings.TrimSpace(header[i]))
				b.WriteString(": ")
			}
			b.WriteString(strings.TrimSpace(value))
			b.WriteString("\n")
		}

		docs = append(docs, index.Document{
			Id:       uuid.New().String(),
			Text:     strings.TrimRight(b.String(), "\n"),
			FileName: fileName,
		})
	}

	return docs, nil
}
