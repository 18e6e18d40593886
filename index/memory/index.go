package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/finchat/finchat/index"
)

type entry struct {
	doc       index.Document
	embedding []float32
}

type memoryIndex struct {
	options index.Options
	entries map[string]entry
	mtx     sync.RWMutex
}

func (m *memoryIndex) Upsert(ctx context.Context, docs []index.Document) error {
	if len(docs) == 0 {
		return nil
	}

	embedded := make([]entry, 0, len(docs))
	for _, doc := range docs {
		vec, err := m.options.Embedder.Embed(ctx, doc.Text)
		if err != nil {
			return err
		}
		if len(doc.Id) == 0 {
			doc.Id = uuid.New().String()
		}
		embedded = append(embedded, entry{doc: doc, embedding: vec})
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	seen := map[string]struct{}{}
	for _, e := range embedded {
		if _, ok := seen[e.doc.FileName]; ok {
			continue
		}
		seen[e.doc.FileName] = struct{}{}
		m.deleteFileLocked(e.doc.FileName)
	}

	for _, e := range embedded {
		m.entries[e.doc.Id] = e
	}

	return nil
}

func (m *memoryIndex) Query(ctx context.Context, text string, k int) ([]index.Match, error) {
	if k < 1 {
		return nil, nil
	}

	vec, err := m.options.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if len(m.entries) == 0 {
		return nil, index.ErrEmptyIndex
	}

	matches := make([]index.Match, 0, len(m.entries))
	for _, e := range m.entries {
		matches = append(matches, index.Match{
			Document: e.doc,
			Score:    index.CosineSimilarity(vec, e.embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

func (m *memoryIndex) DeleteByFile(ctx context.Context, fileName string) (int, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.deleteFileLocked(fileName), nil
}

func (m *memoryIndex) deleteFileLocked(fileName string) int {
	deleted := 0
	for id, e := range m.entries {
		if e.doc.FileName == fileName {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted
}

func NewIndex(opts ...index.Option) index.Index {
	options := index.NewOptions(opts...)

	if options.Embedder == nil {
		panic("embedder is required for the memory index")
	}

	return &memoryIndex{
		options: options,
		entries: map[string]entry{},
	}
}
