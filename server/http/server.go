// Package http exposes the chatbot over a small JSON API for the UI
// layer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	finchat "github.com/finchat/finchat"
	"github.com/finchat/finchat/files"
	"github.com/finchat/finchat/index"
	"github.com/finchat/finchat/ingest"
	"github.com/finchat/finchat/session"
	"github.com/finchat/finchat/turn"
)

const maxUploadBytes = 32 << 20

type Server struct {
	app     *finchat.App
	logger  *slog.Logger
	address string
	server  *http.Server
}

// Handler builds the full route table. Split out from Run so the routes
// can be exercised without a listening socket.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/threads", s.createThread).Methods(http.MethodPost)
	api.HandleFunc("/threads", s.listThreads).Methods(http.MethodGet)
	api.HandleFunc("/threads/{id}", s.deleteThread).Methods(http.MethodDelete)
	api.HandleFunc("/threads/{id}/messages", s.getMessages).Methods(http.MethodGet)
	api.HandleFunc("/threads/{id}/messages", s.postMessage).Methods(http.MethodPost)

	api.HandleFunc("/files", s.uploadFile).Methods(http.MethodPost)
	api.HandleFunc("/files", s.listFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/{name}", s.deleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/files/push", s.pushFiles).Methods(http.MethodPost)
	api.HandleFunc("/files/remove", s.removeFiles).Methods(http.MethodPost)

	return otelhttp.NewHandler(s.logRequests(router), "finchat")
}

func (s *Server) Run() error {
	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	s.logger.Info("http server listening", "address", s.address)

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	id := s.app.NewThread(r.Context())
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.app.ListThreads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": threads})
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.app.DeleteThread(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	messages, err := s.app.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": messages})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	answer, err := s.app.RunTurn(r.Context(), id, body.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.app.UploadFile(r.Context(), header.Filename, content); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"file_name": header.Filename})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	names, err := s.app.ListFiles(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": names})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	deleted, err := s.app.DeleteFile(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"vectors_deleted": deleted})
}

func (s *Server) pushFiles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileNames []string `json:"file_names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.app.PushFiles(r.Context(), body.FileNames); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pushed": body.FileNames})
}

func (s *Server) removeFiles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileNames []string `json:"file_names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	deleted, err := s.app.RemoveFiles(r.Context(), body.FileNames)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"vectors_deleted": deleted})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, files.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, index.ErrEmptyIndex):
		status = http.StatusConflict
	case errors.Is(err, turn.ErrModelUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, session.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.InfoContext(r.Context(), "request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func NewServer(app *finchat.App, address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		app:     app,
		logger:  logger,
		address: address,
	}
}
