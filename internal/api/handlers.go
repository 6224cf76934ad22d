package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reelworks/vod-pipeline/internal/auth"
	"github.com/reelworks/vod-pipeline/internal/session"
	"github.com/reelworks/vod-pipeline/pkg/models"
)

var tracer = otel.Tracer("vod-api")

// MaxRequestBodySize caps JSON request bodies.
const MaxRequestBodySize = 1 << 20 // 1 MB

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	log      *slog.Logger
	sessions *session.Manager
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *slog.Logger, sessions *session.Manager) *Handlers {
	return &Handlers{
		log:      logger,
		sessions: sessions,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handlers) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTooLarge):
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrForbidden):
		h.writeError(ctx, w, http.StatusForbidden, "Session belongs to another user")
	case errors.Is(err, models.ErrSessionNotFound):
		h.writeError(ctx, w, http.StatusNotFound, "Upload session not found")
	case errors.Is(err, models.ErrObjectMissing):
		h.writeError(ctx, w, http.StatusConflict, "Uploaded file not found in storage")
	default:
		h.log.ErrorContext(ctx, "Request failed", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
	}
}

// limitRequestBody wraps the request body with a size limit.
func (h *Handlers) limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
}

// decodeBody decodes the JSON request body into dst, writing the error
// response itself on failure.
func (h *Handlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	h.limitRequestBody(w, r)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// userIDFromContext pulls the authenticated user out of the request context.
func (h *Handlers) userIDFromContext(ctx context.Context, w http.ResponseWriter) (string, bool) {
	claims, ok := auth.GetClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing authentication")
		return "", false
	}
	return claims.UserID, true
}

// RequestUploadRequest is the request payload for starting an upload.
type RequestUploadRequest struct {
	Filename     string `json:"filename"`
	ContentType  string `json:"contentType"`
	DeclaredSize int64  `json:"declaredSize"`
}

// RequestUploadResponse is the response payload for a granted upload.
type RequestUploadResponse struct {
	Token      string `json:"token"`
	StorageKey string `json:"storageKey"`
	UploadURL  string `json:"uploadUrl"`
	URLExpiry  string `json:"urlExpiry"`
	RequestID  string `json:"requestId"`
}

// RequestUploadHandler creates an upload session and returns a presigned URL.
func (h *Handlers) RequestUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "request-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "request-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	userID, ok := h.userIDFromContext(ctx, w)
	if !ok {
		return
	}

	var req RequestUploadRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	grant, err := h.sessions.RequestUpload(ctx, userID, req.Filename, req.ContentType, req.DeclaredSize)
	if err != nil {
		span.RecordError(err)
		h.writeDomainError(ctx, w, err)
		return
	}

	span.SetAttributes(attribute.String("session.storage_key", grant.StorageKey))

	h.writeJSON(ctx, w, http.StatusCreated, RequestUploadResponse{
		Token:      grant.Token,
		StorageKey: grant.StorageKey,
		UploadURL:  grant.UploadURL,
		URLExpiry:  grant.URLExpiry.UTC().Format(time.RFC3339),
		RequestID:  requestID,
	})
}

// CompleteUploadRequest is the request payload for completing an upload.
type CompleteUploadRequest struct {
	Token      string `json:"token"`
	StorageKey string `json:"storageKey"`
}

// CompleteUploadResponse is the response payload for completed uploads.
type CompleteUploadResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// CompleteUploadHandler verifies the upload and queues the transcode job.
func (h *Handlers) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "complete-upload-handler",
		trace.WithAttributes(
			attribute.String("handler", "complete-upload"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	userID, ok := h.userIDFromContext(ctx, w)
	if !ok {
		return
	}

	var req CompleteUploadRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	if err := h.sessions.CompleteUpload(ctx, userID, req.Token, req.StorageKey); err != nil {
		span.RecordError(err)
		h.writeDomainError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusAccepted, CompleteUploadResponse{
		Status:    "processing",
		Message:   "Upload queued for processing",
		RequestID: requestID,
	})
}

// StatusHandler returns the session status and, once done, the media bundle.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, span := tracer.Start(ctx, "status-handler")
	defer span.End()

	userID, ok := h.userIDFromContext(ctx, w)
	if !ok {
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	status, err := h.sessions.GetStatus(ctx, userID, token)
	if err != nil {
		span.RecordError(err)
		h.writeDomainError(ctx, w, err)
		return
	}

	span.SetAttributes(attribute.String("session.status", string(status.Status)))

	h.writeJSON(ctx, w, http.StatusOK, status)
}

// DiscardResponse is the response payload for discarded uploads.
type DiscardResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// DiscardHandler removes a session and every artifact derived from it.
func (h *Handlers) DiscardHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "discard-handler",
		trace.WithAttributes(
			attribute.String("handler", "discard"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	userID, ok := h.userIDFromContext(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	if req.Token == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.sessions.DiscardUpload(ctx, userID, req.Token); err != nil {
		span.RecordError(err)
		h.writeDomainError(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, DiscardResponse{
		Status:    "discarded",
		RequestID: requestID,
	})
}
