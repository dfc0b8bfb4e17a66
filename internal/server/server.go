// Package server exposes the transcription pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultMaxUploadBytes = 25 << 20

// multipart parts beyond this many bytes spill to temporary files.
const formMemoryBytes = 8 << 20

// Backend runs one transcription. pipeline.Service satisfies it.
type Backend interface {
	Transcribe(ctx context.Context, data []byte, filenameHint string) (string, error)
	Ready() bool
}

type Options struct {
	MaxUploadBytes int64
	Logger         *zap.Logger
	Now            func() time.Time
}

// saturation is implemented by backends that can tell before an upload is
// read that it would be rejected for capacity.
type saturation interface {
	Saturated() bool
}

// Server answers health checks from the moment it is created and accepts
// transcriptions once SetBackend has been called.
type Server struct {
	logger    *zap.Logger
	now       func() time.Time
	maxUpload int64
	handler   http.Handler

	mu      sync.RWMutex
	backend Backend
	model   string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		logger:    opts.Logger,
		now:       opts.Now,
		maxUpload: opts.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/audio/transcriptions", s.handleTranscription)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	s.handler = s.logRequests(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// SetBackend marks the service ready under the given model name. Passing a
// nil backend puts the server back into the loading state.
func (s *Server) SetBackend(b Backend, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
	s.model = model
}

func (s *Server) current() (Backend, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil || !s.backend.Ready() {
		return nil, ""
	}
	return s.backend, s.model
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	backend, _ := s.current()
	if backend == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotReady)
		return
	}

	if sat, ok := backend.(saturation); ok && sat.Saturated() {
		writeError(w, http.StatusTooManyRequests, msgBusy)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(formMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		s.logger.Debug("rejecting malformed upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgBadForm)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Warn("failed to read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgBadForm)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, msgEmptyFile)
		return
	}

	// model, model_name, prompt, language, response_format and temperature
	// are accepted for client compatibility and have no effect.
	text, err := backend.Transcribe(r.Context(), data, header.Filename)
	if err != nil {
		status, detail := statusFor(err)
		s.logger.Info("transcription request failed",
			zap.Int("status", status),
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		writeError(w, status, detail)
		return
	}

	writeJSON(w, http.StatusOK, transcriptionResponse{Text: text})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	backend, model := s.current()
	if backend == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "loading", Model: "loading"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Model: model})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := modelsResponse{Object: "list", Data: []modelEntry{}}
	if backend, model := s.current(); backend != nil {
		resp.Data = append(resp.Data, modelEntry{ID: model, Object: "model", OwnedBy: "voxserve"})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
