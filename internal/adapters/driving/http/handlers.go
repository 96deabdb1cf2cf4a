package http

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

// maxMultipartMemory bounds the in-memory portion of an upload parse.
// The declared-size ceiling itself is the validator's decision, so the
// transport limit sits well above it.
const maxMultipartMemory = 32 << 20

// excerptLimit caps source excerpts in query responses.
const excerptLimit = 200

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
	Code  string `json:"code,omitempty" example:"FILE_TOO_LARGE"`
}

// UploadResponse is returned on successful ingestion
// @Description Successful ingestion response
type UploadResponse struct {
	Success   bool   `json:"success" example:"true"`
	SessionID string `json:"sessionId" example:"7e9c2b1a-3f61-4b7e-9f10-1f6f6f3a2d4c"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload a document
// @Description  Ingests a PDF and returns the session id for querying it
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "PDF document"
// @Success      200   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse  "Validation failure"
// @Failure      413   {object}  ErrorResponse  "Size or page-count overage"
// @Failure      500   {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file upload")
		return
	}

	upload := domain.Upload{
		FileName:  header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Size:      header.Size,
		Data:      data,
	}

	doc, err := s.ingestionService.Ingest(r.Context(), upload)
	if err != nil {
		s.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Success: true, SessionID: doc.ID})
}

// writeIngestError maps ingestion failures onto the response contract.
// Validation errors are safe to report verbatim; everything else is
// logged with the correlation id and reported generically.
func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, ve.HTTPStatus(), ErrorResponse{Error: ve.Message, Code: string(ve.Code)})
		return
	}

	s.logger.Error("ingestion failed",
		"request_id", GetRequestID(r.Context()),
		"error", err)

	switch {
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "document processing failed")
	}
}

// Query endpoint

// handleQuery godoc
// @Summary      Ask a question about an ingested document
// @Description  Streams the grounded answer, or returns a JSON insufficient-context response
// @Tags         Query
// @Accept       json
// @Produce      json
// @Param        request  body      domain.QueryRequest  true  "Question with conversation history"
// @Success      200      "Streamed answer or insufficient-context JSON"
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		writeError(w, http.StatusBadRequest, "last message must have role \"user\"")
		return
	}
	question := strings.TrimSpace(last.Content)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	if _, err := s.documentStore.Get(r.Context(), req.SessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown session")
			return
		}
		s.writeQueryError(w, r, err)
		return
	}

	outcome, err := s.retrievalService.Retrieve(r.Context(), req.SessionID, question)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	// Grounding gate: without acceptable evidence the turn ends here
	// with a structured JSON response, never a stream.
	if !outcome.Sufficient && !req.AllowUngrounded {
		writeJSON(w, http.StatusOK, domain.InsufficientContextResponse{
			Answer:        domain.InsufficientContextAnswer,
			Reason:        outcome.Reason,
			TopSimilarity: round4(outcome.TopSimilarity),
			Sources:       sourceRefs(outcome.Results),
		})
		return
	}

	chatService := s.services.ChatService()
	if chatService == nil {
		writeError(w, http.StatusServiceUnavailable, "generation service unavailable")
		return
	}

	role := domain.ParseRole(string(req.Role))
	system := s.contextBuilder.Build(outcome.Results, role)

	s.streamAnswer(w, r, chatService, outcome.Results, system, role, req.Messages)
}

// writeQueryError reports retrieval-path failures. Detail stays in the
// log; the caller gets a terse message plus the correlation id header.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("query failed",
		"request_id", GetRequestID(r.Context()),
		"error", err)

	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, "the request took too long, please retry")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrUpstreamFailure):
		writeError(w, http.StatusBadGateway, "a backing service failed, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "query failed")
	}
}

// sourceRefs converts retrieval results into the client-facing source
// list: page, similarity rounded to 4 decimals, short excerpt.
func sourceRefs(results []domain.RetrievalResult) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(results))
	for _, r := range results {
		excerpt := truncateExcerpt(r.Content, excerptLimit)
		refs = append(refs, domain.SourceRef{
			Page:       r.Page,
			Similarity: round4(r.Similarity),
			Excerpt:    excerpt,
		})
	}
	return refs
}

// truncateExcerpt cuts at the limit, backing off to a rune boundary so a
// multi-byte character is never split into a replacement rune.
func truncateExcerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
