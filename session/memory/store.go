package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finchat/finchat/session"
)

type memoryStore struct {
	options session.Options
	threads map[string][]session.Checkpoint
	mtx     sync.RWMutex
}

func (m *memoryStore) Append(ctx context.Context, threadId string, checkpoints []session.Checkpoint) error {
	if len(checkpoints) == 0 {
		return nil
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	existing := m.threads[threadId]

	var last int64
	if len(existing) > 0 {
		last = existing[len(existing)-1].Sequence
	}

	now := time.Now().UTC()

	for _, cp := range checkpoints {
		cp.ParentSequence = last
		last++
		cp.Sequence = last
		cp.CreatedAt = now
		existing = append(existing, cp)
	}

	m.threads[threadId] = existing

	return nil
}

func (m *memoryStore) Load(ctx context.Context, threadId string) ([]session.Checkpoint, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	cpy := make([]session.Checkpoint, len(m.threads[threadId]))
	copy(cpy, m.threads[threadId])

	return cpy, nil
}

func (m *memoryStore) ListThreads(ctx context.Context) ([]string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	threads := make([]string, 0, len(m.threads))
	for id := range m.threads {
		threads = append(threads, id)
	}
	sort.Strings(threads)

	return threads, nil
}

func (m *memoryStore) Delete(ctx context.Context, threadId string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.threads, threadId)

	return nil
}

func NewStore(opts ...session.Option) session.Store {
	options := session.NewOptions(opts...)

	return &memoryStore{
		options: options,
		threads: map[string][]session.Checkpoint{},
	}
}
