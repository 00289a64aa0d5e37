package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/report"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/service"
	apperrors "github.com/mrzscan/mrzscan-backend/pkg/errors"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
)

const (
	defaultMaxUploadSize = 20 << 20 // 20MB
	maxJSONBody          = 1 << 20
)

// Handler handles HTTP requests for MRZ decoding and document extraction
type Handler struct {
	service       *service.Service
	log           *logger.Logger
	maxUploadSize int64
}

// NewHandler creates a new document extraction handler
func NewHandler(svc *service.Service, log *logger.Logger, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		service:       svc,
		log:           log,
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes mounts the handler on r
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/mrz", func(r chi.Router) {
		r.Post("/decode", h.Decode)
		r.Post("/decode/batch", h.DecodeBatch)
	})
	r.Route("/documents/extract", func(r chi.Router) {
		r.Post("/", h.Extract)
		r.Get("/{jobId}", h.GetResult)
		r.Get("/{jobId}/report", h.GetReport)
	})
}

// decodeResponse is the body of a successful decode
type decodeResponse struct {
	Format       string            `json:"format"`
	DocumentCode string            `json:"document_code"`
	Fields       map[string]string `json:"fields"`
	Validity     map[string]bool   `json:"validity"`
	Valid        bool              `json:"valid"`
	Corrections  int               `json:"corrections"`
	Lines        []string          `json:"lines"`
}

func newDecodeResponse(result *domain.ExtractionResult) decodeResponse {
	return decodeResponse{
		Format:       string(result.Record.Format),
		DocumentCode: result.Record.DocumentCode,
		Fields:       result.Fields,
		Validity:     result.Validity,
		Valid:        result.Valid,
		Corrections:  len(result.Record.Corrections),
		Lines:        result.Record.Lines,
	}
}

// Decode handles POST /mrz/decode
// Body: {"lines": [...]} or {"text": "..."}, with an optional "format".
// Checksum mismatches are returned as warnings with a 200.
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	var req service.DecodeRequest
	if err := httputil.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.Decode(r.Context(), req)
	if err != nil {
		h.logFailure(r, err)
		httputil.ErrorLocalized(w, r, err)
		return
	}

	l := i18n.LocalizerFromContext(r.Context())
	httputil.JSONWithWarnings(w, http.StatusOK, newDecodeResponse(result), domain.LocalizeWarnings(l, result.Warnings))
}

type batchRequest struct {
	Documents []service.DecodeRequest `json:"documents" validate:"required,min=1,dive"`
}

type batchItem struct {
	Index    int                 `json:"index"`
	Result   *decodeResponse     `json:"result,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Error    *httputil.ErrorBody `json:"error,omitempty"`
}

// DecodeBatch handles POST /mrz/decode/batch
// Every document gets its own result or error; the request only fails as a
// whole when it is malformed or too large.
func (h *Handler) DecodeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httputil.DecodeJSON(w, r, &req, maxJSONBody*8); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	items, err := h.service.DecodeBatch(r.Context(), req.Documents)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	l := i18n.LocalizerFromContext(r.Context())
	out := make([]batchItem, len(items))
	for i, item := range items {
		out[i].Index = i
		if item.Err != nil {
			out[i].Error = &httputil.ErrorBody{
				Code:    item.Err.Code,
				Message: item.Err.LocalizeWith(l),
			}
			continue
		}
		resp := newDecodeResponse(item.Result)
		out[i].Result = &resp
		out[i].Warnings = domain.LocalizeWarnings(l, item.Result.Warnings)
	}

	httputil.JSON(w, http.StatusOK, out)
}

// Extract handles POST /documents/extract
// Accepts multipart form with:
// - file: a JPEG/PNG image of the document, or its MRZ as plain text
// - document_type: one of passport, id_card, travel_document
// - consent_timestamp: RFC 3339 timestamp of consent
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	// Limit request size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httputil.ErrorLocalized(w, r, apperrors.PayloadTooLarge(h.maxUploadSize))
			return
		}
		httputil.ErrorLocalized(w, r, apperrors.BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := extractForm{
		DocumentType:     r.FormValue("document_type"),
		ConsentTimestamp: r.FormValue("consent_timestamp"),
	}
	if err := httputil.Validate(form); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	consentAt, _ := time.Parse(time.RFC3339, form.ConsentTimestamp)

	// Get uploaded file
	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.ErrorLocalized(w, r, apperrors.Validation(map[string]string{"file": "this field is required"}))
		return
	}
	defer file.Close()

	// Read file into memory (never to disk)
	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read uploaded file")
		httputil.ErrorLocalized(w, r, apperrors.Internal("failed to read uploaded file"))
		return
	}

	// Start extraction (data will be zeroed by the service)
	subject := httputil.GetSubject(r.Context())
	job, err := h.service.StartExtraction(r.Context(), data, domain.DocumentType(form.DocumentType), consentAt.UTC(), subject)
	if err != nil {
		h.logFailure(r, err)
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Accepted(w, job)
}

type extractForm struct {
	DocumentType     string `validate:"required,oneof=passport id_card travel_document"`
	ConsentTimestamp string `validate:"required,rfc3339"`
}

// GetResult handles GET /documents/extract/{jobId}
// Returns the extraction job status and results
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if job.Result != nil {
		l := i18n.LocalizerFromContext(r.Context())
		httputil.JSONWithWarnings(w, http.StatusOK, job, domain.LocalizeWarnings(l, job.Result.Warnings))
		return
	}
	httputil.JSON(w, http.StatusOK, job)
}

// GetReport handles GET /documents/extract/{jobId}/report
// Returns the PDF report of a completed job
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	l := i18n.LocalizerFromContext(r.Context())
	pdf, err := h.service.Report(chi.URLParam(r, "jobId"), l)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Attachment(w, report.ContentType, report.Filename, pdf)
}

func (h *Handler) logFailure(r *http.Request, err error) {
	log := h.log.WithRequestID(httputil.GetRequestID(r.Context()))
	if subject := httputil.GetSubject(r.Context()); subject != "" {
		log = log.WithSubject(subject)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		log.Debug().Err(err).Str("code", appErr.Code).Msg("request rejected")
		return
	}
	log.Error().Err(err).Msg("document processing failed")
}
