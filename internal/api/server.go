// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "csv-chat/internal/common/errors"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/models"
	answerquestion "csv-chat/internal/workers/conversation/answer-question"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	ingestcsv "csv-chat/internal/workers/data-access/ingest-csv"
)

type Ingester interface {
	Execute(ctx context.Context, input *ingestcsv.Input) (*ingestcsv.Output, error)
}

type SchemaReader interface {
	Execute(ctx context.Context, input *describetable.Input) (*describetable.Output, error)
	Diagnose(ctx context.Context, input *describetable.Input) (*models.TableDiagnostics, error)
}

type QuestionAnswerer interface {
	Execute(ctx context.Context, input *answerquestion.Input) (*answerquestion.Output, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Ingest Ingester
	Schema SchemaReader
	Answer QuestionAnswerer
	Store  Pinger
}

type Config struct {
	UploadMaxBytes int64
}

// Server is the JSON API. Requests touching the table are serialized so an
// upload never interleaves with a question on the same store.
type Server struct {
	config   *Config
	services Services
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
	mu       sync.Mutex
	mux      *http.ServeMux
}

func NewServer(config *Config, services Services, log logger.Logger) *Server {
	s := &Server{
		config:   config,
		services: services,
		errors:   apperrors.NewErrorHandler(log, ClassifyPipelineError),
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/schema", s.handleSchema)
	s.mux.HandleFunc("GET /api/debug", s.handleDebug)
	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request served", map[string]interface{}{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start).Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Store.Ping(r.Context()); err != nil {
		s.errors.WriteHTTP(w, r, apperrors.NewStoreUnavailableError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.UploadMaxBytes)
	}

	data, filename, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errors.WriteHTTP(w, r, apperrors.NewInvalidInputError(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	output, err := s.services.Ingest.Execute(r.Context(), &ingestcsv.Input{Filename: filename, Data: data})
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

// readUpload accepts a multipart form with a "file" part or a raw CSV body.
func readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", err
		}
		return data, r.URL.Query().Get("filename"), nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("multipart upload needs a \"file\" part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	output, err := s.services.Schema.Execute(r.Context(), &describetable.Input{})
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	diag, err := s.services.Schema.Diagnose(r.Context(), &describetable.Input{})
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diag)
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidInputError("body must be a JSON object with a \"question\" field"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidInputError("question is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	output, err := s.services.Answer.Execute(r.Context(), &answerquestion.Input{Question: req.Question})
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}
