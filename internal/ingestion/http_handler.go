package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/tradeflow/internal/auth"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
)

const (
	maxUploadMemory       = 32 << 20
	defaultMaxUploadBytes = 64 << 20
)

// Uploader stores a multipart upload and returns the path later passed to Download.
type Uploader interface {
	Save(ctx context.Context, name string, body io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
}

// Handler exposes import jobs over HTTP under /imports.
type Handler struct {
	service        *Service
	uploads        Uploader
	maxUploadBytes int64
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithMaxUploadBytes caps the request body accepted by POST /imports/upload.
func WithMaxUploadBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxUploadBytes = limit
		}
	}
}

// NewHTTPHandler wraps the service. uploads may be nil, which disables POST /imports/upload.
func NewHTTPHandler(service *Service, uploads Uploader, opts ...HandlerOption) http.Handler {
	h := &Handler{service: service, uploads: uploads, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/imports"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" {
		parts = nil
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 0:
		h.handleSubmit(w, r)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "upload":
		h.handleUpload(w, r)
	case r.Method == http.MethodGet && len(parts) == 0:
		h.handleListJobs(w, r)
	case r.Method == http.MethodGet && len(parts) == 1:
		h.handleGetJob(w, r, parts[0])
	case r.Method == http.MethodGet && len(parts) == 2 && parts[1] == "errors":
		h.handleListErrors(w, r, parts[0])
	case r.Method != http.MethodGet && r.Method != http.MethodPost:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type submitPayload struct {
	OrganizationID string `json:"organizationId"`
	FilePath       string `json:"filePath"`
	FileName       string `json:"fileName"`
	FileFormat     string `json:"fileFormat"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	orgID, ok := organizationID(w, r, payload.OrganizationID)
	if !ok {
		return
	}
	h.submit(w, r, SubmitRequest{
		OrganizationID: orgID,
		FilePath:       payload.FilePath,
		FileName:       payload.FileName,
		DeclaredFormat: payload.FileFormat,
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		http.Error(w, "uploads are not configured", http.StatusNotImplemented)
		return
	}
	if r.ContentLength > h.maxUploadBytes {
		http.Error(w, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	orgID, ok := organizationID(w, r, r.FormValue("organizationId"))
	if !ok {
		return
	}

	path, err := h.uploads.Save(r.Context(), orgID.String()+"/"+uuid.NewString()+"-"+header.Filename, file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to store upload: %v", err), http.StatusInternalServerError)
		return
	}

	job, err := h.service.SubmitImport(r.Context(), SubmitRequest{
		OrganizationID: orgID,
		FilePath:       path,
		FileName:       header.Filename,
		DeclaredFormat: r.FormValue("fileFormat"),
	})
	if err != nil {
		if delErr := h.uploads.Delete(context.WithoutCancel(r.Context()), path); delErr != nil {
			slog.WarnContext(r.Context(), "failed to remove orphaned upload", "path", path, "error", delErr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, req SubmitRequest) {
	job, err := h.service.SubmitImport(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r, r.URL.Query().Get("organizationId"))
	if !ok {
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	jobs, err := h.service.ListJobs(r.Context(), orgID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return
	}
	job, err := h.service.GetJobStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) handleListErrors(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.service.GetJobErrors(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// organizationID resolves the tenant from the request, falling back to the authenticated scope.
func organizationID(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if scoped, ok := auth.OrganizationIDFromContext(r.Context()); ok {
			return scoped, true
		}
		http.Error(w, "organizationId is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	orgID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid organizationId: %v", err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	if err := auth.EnforceOrganizationScope(r.Context(), orgID); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return uuid.Nil, false
	}
	return orgID, true
}

func paging(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid limit: %w", err)
	}
	offset, err := intParam(query.Get("offset"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset: %w", err)
	}
	return limit, offset, nil
}

func intParam(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return value, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrServiceClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, auth.ErrScopeMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, auth.ErrOrganizationRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("import request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
