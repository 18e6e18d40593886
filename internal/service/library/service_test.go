package library

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finchat/finchat/files"
	filesmemory "github.com/finchat/finchat/files/memory"
	"github.com/finchat/finchat/index"
	"github.com/finchat/finchat/ingest"
)

// recordingIndex captures upserts and deletes without embedding anything.
type recordingIndex struct {
	docs map[string][]index.Document
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{docs: map[string][]index.Document{}}
}

func (r *recordingIndex) Upsert(ctx context.Context, docs []index.Document) error {
	for _, doc := range docs {
		r.docs[doc.FileName] = append(r.docs[doc.FileName], doc)
	}
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, text string, k int) ([]index.Match, error) {
	return nil, index.ErrEmptyIndex
}

func (r *recordingIndex) DeleteByFile(ctx context.Context, fileName string) (int, error) {
	deleted := len(r.docs[fileName])
	delete(r.docs, fileName)
	return deleted, nil
}

const expensesCSV = "Month,Department,Expenses\nJanuary,Marketing,$3100\nFebruary,Marketing,$4200"

func newService(idx index.Index) (*Service, files.Store) {
	store := filesmemory.NewStore()
	return New(store, idx, slog.Default()), store
}

func TestUploadValidatesBeforeSaving(t *testing.T) {
	svc, store := newService(newRecordingIndex())
	ctx := context.Background()

	err := svc.Upload(ctx, "notes.txt", []byte("just some prose\nwith \"broken quoting"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestUploadDoesNotIndex(t *testing.T) {
	idx := newRecordingIndex()
	svc, store := newService(idx)
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, "expenses.csv", []byte(expensesCSV)))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"expenses.csv"}, names)
	assert.Empty(t, idx.docs)
}

func TestPushIndexesStoredFiles(t *testing.T) {
	idx := newRecordingIndex()
	svc, _ := newService(idx)
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, "expenses.csv", []byte(expensesCSV)))
	require.NoError(t, svc.Push(ctx, []string{"expenses.csv"}))

	docs := idx.docs["expenses.csv"]
	require.Len(t, docs, 2)
	assert.True(t, strings.Contains(docs[1].Text, "February"))
}

func TestPushUnknownFileFails(t *testing.T) {
	svc, _ := newService(newRecordingIndex())

	err := svc.Push(context.Background(), []string{"missing.csv"})
	require.Error(t, err)
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestRemoveKeepsFileRecords(t *testing.T) {
	idx := newRecordingIndex()
	svc, store := newService(idx)
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, "expenses.csv", []byte(expensesCSV)))
	require.NoError(t, svc.Push(ctx, []string{"expenses.csv"}))

	deleted, err := svc.Remove(ctx, []string{"expenses.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// record survives so the file can be pushed again later
	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"expenses.csv"}, names)
}

func TestDeleteFileCascadesToIndex(t *testing.T) {
	idx := newRecordingIndex()
	svc, store := newService(idx)
	ctx := context.Background()

	require.NoError(t, svc.Upload(ctx, "expenses.csv", []byte(expensesCSV)))
	require.NoError(t, svc.Push(ctx, []string{"expenses.csv"}))

	deleted, err := svc.DeleteFile(ctx, "expenses.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Empty(t, idx.docs)
}

func TestDeleteUnknownFileReportsZero(t *testing.T) {
	svc, _ := newService(newRecordingIndex())

	deleted, err := svc.DeleteFile(context.Background(), "missing.csv")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
