// Package chat orchestrates conversational turns: it rebuilds a thread's
// history, runs the turn state machine, and persists the resulting
// checkpoints atomically.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/finchat/finchat/generator"
	"github.com/finchat/finchat/session"
	"github.com/finchat/finchat/turn"
)

type Service struct {
	machine *turn.Machine
	store   session.Store
	logger  *slog.Logger

	// one lock per thread; a second turn on the same thread waits for the
	// first to finish, while other threads run concurrently
	locks map[string]*sync.Mutex
	mtx   sync.Mutex
}

// NewThread returns a fresh thread identifier. Nothing is persisted until
// the first turn completes.
func (s *Service) NewThread(ctx context.Context) string {
	return uuid.New().String()
}

// RunTurn executes one turn for a thread and returns the final answer
// text. On any failure nothing is persisted and the thread's prior
// checkpoints are untouched.
func (s *Service) RunTurn(ctx context.Context, threadId string, userText string) (string, error) {
	lock := s.threadLock(threadId)
	lock.Lock()
	defer lock.Unlock()

	checkpoints, err := s.store.Load(ctx, threadId)
	if err != nil {
		return "", fmt.Errorf("load thread %s: %w", threadId, err)
	}

	result, err := s.machine.Run(ctx, historyFrom(checkpoints), userText)
	if err != nil {
		s.logger.ErrorContext(ctx, "turn failed", "thread_id", threadId, "error", err)
		return "", err
	}

	appended := make([]session.Checkpoint, 0, len(result.Trace))
	for _, step := range result.Trace {
		appended = append(appended, session.Checkpoint{
			Node:     string(step.Node),
			Messages: step.Messages,
		})
	}

	if err := s.store.Append(ctx, threadId, appended); err != nil {
		return "", fmt.Errorf("append thread %s: %w", threadId, err)
	}

	return result.Answer, nil
}

// History returns the thread's current message sequence.
func (s *Service) History(ctx context.Context, threadId string) ([]generator.Message, error) {
	checkpoints, err := s.store.Load(ctx, threadId)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadId, err)
	}
	return historyFrom(checkpoints), nil
}

func (s *Service) ListThreads(ctx context.Context) ([]string, error) {
	return s.store.ListThreads(ctx)
}

func (s *Service) DeleteThread(ctx context.Context, threadId string) error {
	lock := s.threadLock(threadId)
	lock.Lock()
	defer lock.Unlock()

	return s.store.Delete(ctx, threadId)
}

func (s *Service) threadLock(threadId string) *sync.Mutex {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	lock, ok := s.locks[threadId]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[threadId] = lock
	}

	return lock
}

// historyFrom rebuilds the message sequence from the latest checkpoint,
// which snapshots the full sequence at the node that produced it.
func historyFrom(checkpoints []session.Checkpoint) []generator.Message {
	if len(checkpoints) == 0 {
		return nil
	}
	return checkpoints[len(checkpoints)-1].Messages
}

func New(machine *turn.Machine, store session.Store, logger *slog.Logger) *Service {
	if machine == nil {
		panic("turn machine is required")
	}

	if store == nil {
		panic("session store is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		machine: machine,
		store:   store,
		logger:  logger,
		locks:   map[string]*sync.Mutex{},
	}
}
