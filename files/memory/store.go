package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finchat/finchat/files"
)

type memoryStore struct {
	options files.Options
	records map[string]files.Record
	mtx     sync.RWMutex
}

func (m *memoryStore) Save(ctx context.Context, fileName string, content []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	cpy := make([]byte, len(content))
	copy(cpy, content)

	m.records[fileName] = files.Record{
		FileName:   fileName,
		Content:    cpy,
		UploadedAt: time.Now().UTC(),
	}

	return nil
}

func (m *memoryStore) List(ctx context.Context) ([]string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

func (m *memoryStore) Fetch(ctx context.Context, fileName string) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	record, ok := m.records[fileName]
	if !ok {
		return nil, files.ErrNotFound
	}

	cpy := make([]byte, len(record.Content))
	copy(cpy, record.Content)

	return cpy, nil
}

func (m *memoryStore) Delete(ctx context.Context, fileName string) (int, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.records[fileName]; !ok {
		return 0, nil
	}

	delete(m.records, fileName)

	return 1, nil
}

func NewStore(opts ...files.Option) files.Store {
	options := files.NewOptions(opts...)

	return &memoryStore{
		options: options,
		records: map[string]files.Record{},
	}
}
