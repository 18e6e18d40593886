package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finchat/finchat/index"
)

// vocabEmbedder embeds text as term counts over a fixed vocabulary, so
// cosine similarity deterministically tracks keyword overlap.
type vocabEmbedder struct {
	vocab []string
}

func (e *vocabEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lowered := strings.ToLower(text)

	vec := make([]float32, len(e.vocab))
	for i, term := range e.vocab {
		vec[i] = float32(strings.Count(lowered, term))
	}
	return vec, nil
}

func newTestIndex() index.Index {
	return NewIndex(index.WithEmbedder(&vocabEmbedder{
		vocab: []string{"january", "february", "march", "marketing", "r&d", "sales", "expenses"},
	}))
}

func expenseDocs() []index.Document {
	return []index.Document{
		{Id: "1", Text: "Month: January\nDepartment: Marketing\nExpenses: $3,100", FileName: "expenses.csv"},
		{Id: "2", Text: "Month: February\nDepartment: Marketing\nExpenses: $4,200", FileName: "expenses.csv"},
		{Id: "3", Text: "Month: February\nDepartment: R&D\nExpenses: $9,800", FileName: "expenses.csv"},
	}
}

func TestQueryRanksByKeywordOverlap(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, expenseDocs()))

	matches, err := idx.Query(ctx, "marketing expenses in february", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "2", matches[0].Document.Id)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := newTestIndex()

	matches, err := idx.Query(context.Background(), "anything", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrEmptyIndex)
	assert.Nil(t, matches)
}

func TestUpsertReplacesFileDocuments(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, expenseDocs()))

	// re-push with fresh ids must not leave the old rows behind
	replacement := []index.Document{
		{Id: "9", Text: "Month: March\nDepartment: Sales\nExpenses: $1,000", FileName: "expenses.csv"},
	}
	require.NoError(t, idx.Upsert(ctx, replacement))

	matches, err := idx.Query(ctx, "expenses", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "9", matches[0].Document.Id)
}

func TestDeleteByFile(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, expenseDocs()))
	require.NoError(t, idx.Upsert(ctx, []index.Document{
		{Id: "10", Text: "Month: March\nDepartment: Sales\nExpenses: $500", FileName: "other.csv"},
	}))

	deleted, err := idx.DeleteByFile(ctx, "expenses.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	// deleting again is a no-op, not an error
	deleted, err = idx.DeleteByFile(ctx, "expenses.csv")
	require.NoError(t, err)
	assert.Zero(t, deleted)

	matches, err := idx.Query(ctx, "sales", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "other.csv", matches[0].Document.FileName)
}

func TestDeleteUnknownFileReportsZero(t *testing.T) {
	idx := newTestIndex()

	deleted, err := idx.DeleteByFile(context.Background(), "missing.csv")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestQueryNeverReturnsMoreThanK(t *testing.T) {
	idx := newTestIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, expenseDocs()))

	matches, err := idx.Query(ctx, "expenses", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
