package finchat

import (
	"context"
	"log/slog"

	"github.com/finchat/finchat/files"
	"github.com/finchat/finchat/generator"
	"github.com/finchat/finchat/index"
	"github.com/finchat/finchat/internal/service/chat"
	"github.com/finchat/finchat/internal/service/library"
	"github.com/finchat/finchat/session"
	"github.com/finchat/finchat/toolhandler/retrieval"
	"github.com/finchat/finchat/turn"
)

// App is the public surface of the chatbot. The UI layer talks to it
// exclusively through these methods.
type App struct {
	chat    *chat.Service
	library *library.Service
}

func (a *App) NewThread(ctx context.Context) string {
	return a.chat.NewThread(ctx)
}

func (a *App) RunTurn(ctx context.Context, threadId string, userText string) (string, error) {
	return a.chat.RunTurn(ctx, threadId, userText)
}

func (a *App) History(ctx context.Context, threadId string) ([]generator.Message, error) {
	return a.chat.History(ctx, threadId)
}

func (a *App) ListThreads(ctx context.Context) ([]string, error) {
	return a.chat.ListThreads(ctx)
}

func (a *App) DeleteThread(ctx context.Context, threadId string) error {
	return a.chat.DeleteThread(ctx, threadId)
}

func (a *App) UploadFile(ctx context.Context, fileName string, content []byte) error {
	return a.library.Upload(ctx, fileName, content)
}

func (a *App) ListFiles(ctx context.Context) ([]string, error) {
	return a.library.ListFiles(ctx)
}

func (a *App) DeleteFile(ctx context.Context, fileName string) (int, error) {
	return a.library.DeleteFile(ctx, fileName)
}

func (a *App) PushFiles(ctx context.Context, fileNames []string) error {
	return a.library.Push(ctx, fileNames)
}

func (a *App) RemoveFiles(ctx context.Context, fileNames []string) (int, error) {
	return a.library.Remove(ctx, fileNames)
}

func New(
	gen generator.Generator,
	idx index.Index,
	sessions session.Store,
	fileStore files.Store,
	maxRewrites int,
	retrievalLimit int,
	logger *slog.Logger,
) *App {
	if logger == nil {
		logger = slog.Default()
	}

	machine := turn.NewMachine(turn.Config{
		Generator:   gen,
		Tool:        retrieval.NewToolHandler(idx, retrievalLimit),
		MaxRewrites: maxRewrites,
		Logger:      logger,
	})

	return &App{
		chat:    chat.New(machine, sessions, logger),
		library: library.New(fileStore, idx, logger),
	}
}
