package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Gaziyo/tuutta-genie/internal/assessment"
	"github.com/Gaziyo/tuutta-genie/internal/extract"
	"github.com/Gaziyo/tuutta-genie/internal/i18n"
	"github.com/Gaziyo/tuutta-genie/internal/llm"
	"github.com/Gaziyo/tuutta-genie/internal/llm/prompts"
	"github.com/Gaziyo/tuutta-genie/internal/model"
	"github.com/Gaziyo/tuutta-genie/internal/search"
	"github.com/Gaziyo/tuutta-genie/internal/store"
)

const maxUploadBytes = 32 << 20

// Uploader stores raw file bytes and returns a content ref. Nil disables
// object storage and keeps uploads inline as data URIs.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	llm       *llm.Client
	extractor *extract.Extractor
	search    *search.Client
	generator *assessment.Generator
	evaluator *assessment.Evaluator
	registry  *llm.Registry
	uploads   Uploader
}

// New creates a new Handler.
func New(s *store.Store, l *llm.Client, ex *extract.Extractor, sc *search.Client,
	gen *assessment.Generator, ev *assessment.Evaluator, uploads Uploader) *Handler {
	return &Handler{
		store:     s,
		llm:       l,
		extractor: ex,
		search:    sc,
		generator: gen,
		evaluator: ev,
		registry:  llm.NewRegistry(),
		uploads:   uploads,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/health", h.handleHealth)
	r.Post("/api/sources", h.handleUploadSource)
	r.Get("/api/sources", h.handleListSources)
	r.Get("/api/sources/{sourceID}", h.handleGetSource)
	r.Post("/api/search", h.handleSearch)
	r.Post("/api/assessments", h.handleGenerateAssessment)
	r.Get("/api/assessments", h.handleListAssessments)
	r.Get("/api/assessments/{assessmentID}", h.handleGetAssessment)
	r.Post("/api/assessments/{assessmentID}/evaluate", h.handleEvaluate)
	r.Post("/api/tutor", h.handleTutor)
	r.Delete("/api/tutor/{requestID}", h.handleCancelTutor)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleUploadSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			mimeType = byExt
		}
	}

	upload := model.FileUpload{
		ID:        uuid.NewString(),
		Name:      header.Filename,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}

	if h.uploads != nil {
		ref, err := h.uploads.Upload(r.Context(), upload.ID+"/"+upload.Name, data, mimeType)
		if err != nil {
			slog.Error("object storage upload failed", "name", upload.Name, "error", err)
			writeError(w, http.StatusBadGateway, "upload storage unavailable")
			return
		}
		upload.ContentRef = ref
	} else {
		upload.ContentRef = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	text, err := h.extractor.Extract(r.Context(), &upload)
	var unsupported *extract.ErrUnsupportedType
	if errors.As(err, &unsupported) {
		h.discardUpload(r.Context(), upload.ContentRef)
		writeError(w, http.StatusUnsupportedMediaType,
			i18n.Td(r.Context(), "unsupported_file_type", map[string]any{"Name": unsupported.Name}))
		return
	}
	if err != nil {
		h.discardUpload(r.Context(), upload.ContentRef)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	upload.ExtractedText = text

	if err := h.store.InsertSource(upload); err != nil {
		h.discardUpload(r.Context(), upload.ContentRef)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

// discardUpload deletes an object stored earlier in the same request so a
// failed upload leaves nothing behind in the bucket.
func (h *Handler) discardUpload(ctx context.Context, ref string) {
	if h.uploads == nil || ref == "" {
		return
	}
	if err := h.uploads.Remove(ctx, ref); err != nil {
		slog.Warn("removing orphaned upload failed", "ref", ref, "error", err)
	}
}

func (h *Handler) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListSources()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []model.FileUpload{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *Handler) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source, err := h.store.GetSource(chi.URLParam(r, "sourceID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "source_not_found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, source)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []model.SearchResult `json:"results"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	results, err := h.search.Search(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusBadGateway, i18n.T(r.Context(), "search_failed"))
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type generateRequest struct {
	SourceID  string `json:"sourceId,omitempty"`
	Content   string `json:"content,omitempty"`
	Type      string `json:"type"`
	Count     int    `json:"count"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

func (h *Handler) handleGenerateAssessment(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !model.IsValidAssessmentType(req.Type) {
		writeError(w, http.StatusBadRequest, "unknown assessment type: "+req.Type)
		return
	}

	content := req.Content
	if req.SourceID != "" {
		source, err := h.store.GetSource(req.SourceID)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, i18n.T(r.Context(), "source_not_found"))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		text, err := h.extractor.Extract(r.Context(), &source)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if source.ExtractedText == "" {
			if err := h.store.UpdateSourceText(source.ID, text); err != nil {
				slog.Warn("persisting extracted text failed", "source", source.ID, "error", err)
			}
		}
		content = text
	}

	a, err := h.generator.Generate(r.Context(), content, model.AssessmentType(req.Type), req.Count, req.SourceURL)
	switch {
	case errors.Is(err, assessment.ErrNoContent):
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "no_content"))
		return
	case errors.Is(err, assessment.ErrNoValidQuestions):
		writeError(w, http.StatusUnprocessableEntity, i18n.T(r.Context(), "no_valid_questions"))
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := h.store.InsertAssessment(*a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	assessments, err := h.store.ListAssessments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assessments == nil {
		assessments = []model.Assessment{}
	}
	writeJSON(w, http.StatusOK, assessments)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAssessment(chi.URLParam(r, "assessmentID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "assessment_not_found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type evaluateRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "assessmentID")
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "missing questionId")
		return
	}

	a, err := h.store.GetAssessment(assessmentID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "assessment_not_found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var question *model.Question
	for i := range a.Questions {
		if a.Questions[i].ID == req.QuestionID {
			question = &a.Questions[i]
			break
		}
	}
	if question == nil {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "question_not_found"))
		return
	}

	result := h.evaluator.Evaluate(r.Context(), *question, req.Answer)
	if _, err := h.store.InsertEvaluation(assessmentID, req.QuestionID, req.Answer, result); err != nil {
		slog.Warn("recording evaluation failed", "assessment", assessmentID, "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

type tutorRequest struct {
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message"`
	Search    bool   `json:"search,omitempty"`
}

type tutorResponse struct {
	RequestID string `json:"requestId"`
	Reply     string `json:"reply"`
}

func (h *Handler) handleTutor(w http.ResponseWriter, r *http.Request) {
	var req tutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, handle := h.registry.BeginWith(r.Context(), req.RequestID)
	defer h.registry.End(handle.ID)

	var searchContext string
	if req.Search {
		results, err := h.search.Search(ctx, req.Message)
		if err != nil {
			slog.Warn("tutor search skipped", "error", err)
		} else {
			searchContext = search.FormatResults(results)
		}
	}

	resp, err := h.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompts.Tutor(searchContext),
		UserPrompt:   prompts.SanitizeContent(req.Message),
		Temperature:  0.7,
		MaxTokens:    2048,
	})
	if errors.Is(ctx.Err(), context.Canceled) {
		writeError(w, httpStatusClientClosedRequest, "request cancelled")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tutorResponse{RequestID: handle.ID, Reply: resp.Content})
}

func (h *Handler) handleCancelTutor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if !h.registry.Cancel(id) {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "request_not_found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cancelled": id})
}

// nginx convention for a client-abandoned request.
const httpStatusClientClosedRequest = 499

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
