// Package httpadapter exposes the document and query services over HTTP.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pldubois/ragdoc/internal/core/ports"
	"github.com/pldubois/ragdoc/internal/observability/metrics"
)

const maxBulkQuestions = 20

type Config struct {
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	cfg      Config
	ingestor ports.DocumentIngestor
	query    ports.QueryService
	reader   ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg Config,
	ingestor ports.DocumentIngestor,
	query ports.QueryService,
	reader ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		query:    query,
		reader:   reader,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.answerQuery)
	mux.HandleFunc("/v1/rag/query/bulk", rt.answerBulkQuery)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(r, w, "upload_failed", err)
		return
	}

	rt.metrics.RecordUpload(rt.cfg.Service, fileHeader.Size)
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(r, w, "get_document_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	response, err := rt.query.Answer(r.Context(), req.Question)
	if err != nil {
		rt.writeError(r, w, "query_failed", err)
		return
	}

	rt.metrics.RecordQueryObservation(
		rt.cfg.Service,
		"query",
		response.NumChunksRetrieved,
		response.Confidence,
		response.IsHallucinationRisk,
		time.Since(start),
	)
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) answerBulkQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Questions []string `json:"questions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Questions) == 0 {
		writeJSONError(w, http.StatusBadRequest, "questions are required")
		return
	}
	if len(req.Questions) > maxBulkQuestions {
		writeJSONError(w, http.StatusBadRequest, "too many questions in one request")
		return
	}

	start := time.Now()
	response, err := rt.query.AnswerBatch(r.Context(), req.Questions)
	if err != nil {
		rt.writeError(r, w, "bulk_query_failed", err)
		return
	}

	if n := len(response.Results); n > 0 {
		perQuestion := time.Since(start) / time.Duration(n)
		for _, result := range response.Results {
			rt.metrics.RecordQueryObservation(
				rt.cfg.Service,
				"query_bulk",
				result.NumChunksRetrieved,
				result.Confidence,
				result.IsHallucinationRisk,
				perQuestion,
			)
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) writeError(r *http.Request, w http.ResponseWriter, event string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error(event, "request_id", requestIDFromContext(r.Context()), "error", err)
	} else {
		slog.Warn(event, "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSONError(w, status, publicErrorMessage(status, err))
}

// publicErrorMessage hides internal details for 5xx responses.
func publicErrorMessage(status int, err error) string {
	if status >= 500 && status != http.StatusServiceUnavailable {
		return "internal error"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
