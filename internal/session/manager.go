// Package session implements the upload session manager: presigned-upload
// session lifecycle, job enqueueing, status reads and the discard path.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reelworks/vod-pipeline/internal/metrics"
	"github.com/reelworks/vod-pipeline/internal/storage"
	"github.com/reelworks/vod-pipeline/pkg/models"
)

var tracer = otel.Tracer("vod-session")

// Configuration constants
const (
	PresignedURLExpiration = 10 * time.Minute
	MaxFilenameLength      = 255
)

// AllowedContentTypes lists the upload content types the manager accepts.
var AllowedContentTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,
}

// ObjectStore is the object-store surface the manager needs.
type ObjectStore interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, lifetime time.Duration) (string, error)
	Head(ctx context.Context, bucket, key string) (*storage.ObjectMeta, bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Catalog is the catalog-store surface the manager needs.
type Catalog interface {
	CreateSession(ctx context.Context, session *models.UploadSession) error
	GetSessionByToken(ctx context.Context, token string) (*models.UploadSession, error)
	TransitionStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) error
	GetMediaBundle(ctx context.Context, sessionID string) (*models.MediaBundle, error)
	DeleteMediaRows(ctx context.Context, sessionID string, bundle *models.MediaBundle) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// JobQueue is the queue surface the manager needs.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.TranscodeJob) error
}

// Manager owns session creation and state transitions.
type Manager struct {
	store           ObjectStore
	catalog         Catalog
	queue           JobQueue
	rawBucket       string
	processedBucket string
	maxUploadBytes  int64
	log             *slog.Logger
}

// Config holds manager dependencies.
type Config struct {
	Store           ObjectStore
	Catalog         Catalog
	Queue           JobQueue
	RawBucket       string
	ProcessedBucket string
	MaxUploadBytes  int64
	Logger          *slog.Logger
}

// NewManager creates a session manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{
		store:           cfg.Store,
		catalog:         cfg.Catalog,
		queue:           cfg.Queue,
		rawBucket:       cfg.RawBucket,
		processedBucket: cfg.ProcessedBucket,
		maxUploadBytes:  cfg.MaxUploadBytes,
		log:             cfg.Logger,
	}
}

// RawKey returns the storage key of a raw upload, namespaced by user and
// token.
func RawKey(userID, token, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("uploads/%s/%s%s", userID, token, ext)
}

// ProcessedPrefix returns the deterministic key prefix for all published
// artifacts of a session.
func ProcessedPrefix(userID, sessionID string) string {
	return fmt.Sprintf("processed/%s/%s/", userID, sessionID)
}

// HLSPrefix returns the key prefix of a session's segmented packages.
func HLSPrefix(userID, sessionID string) string {
	return ProcessedPrefix(userID, sessionID) + "hls/"
}

// UploadGrant is the result of RequestUpload.
type UploadGrant struct {
	Token      string    `json:"token"`
	StorageKey string    `json:"storageKey"`
	UploadURL  string    `json:"uploadUrl"`
	URLExpiry  time.Time `json:"urlExpiry"`
}

// RequestUpload validates the declared upload, creates a session at status
// initiated and returns a presigned PUT URL for the raw key.
func (m *Manager) RequestUpload(ctx context.Context, userID, filename, contentType string, declaredSize int64) (*UploadGrant, error) {
	ctx, span := tracer.Start(ctx, "request-upload")
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", models.ErrInvalidInput)
	}
	if filename == "" || len(filename) > MaxFilenameLength {
		return nil, fmt.Errorf("%w: filename is missing or too long", models.ErrInvalidInput)
	}
	if !AllowedContentTypes[contentType] {
		return nil, fmt.Errorf("%w: unsupported content type %q", models.ErrInvalidInput, contentType)
	}
	if declaredSize <= 0 {
		return nil, fmt.Errorf("%w: declared size must be positive", models.ErrInvalidInput)
	}
	if declaredSize > m.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", models.ErrTooLarge, declaredSize, m.maxUploadBytes)
	}

	token := uuid.New().String()
	sessionID := uuid.New().String()
	storageKey := RawKey(userID, token, filename)

	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.storage_key", storageKey),
	)

	session := &models.UploadSession{
		SessionID:   sessionID,
		UserID:      userID,
		UploadToken: token,
		StorageKey:  storageKey,
		FileSize:    declaredSize,
		ContentType: contentType,
	}
	if err := m.catalog.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	uploadURL, err := m.store.PresignPut(ctx, m.rawBucket, storageKey, contentType, PresignedURLExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	metrics.UploadsInitiated.Inc()
	m.log.InfoContext(ctx, "Upload session created",
		"sessionId", sessionID,
		"userId", userID,
		"storageKey", storageKey,
	)

	return &UploadGrant{
		Token:      token,
		StorageKey: storageKey,
		UploadURL:  uploadURL,
		URLExpiry:  time.Now().Add(PresignedURLExpiration),
	}, nil
}

// CompleteUpload verifies the uploaded object exists, enqueues the
// transcode job and advances the session to processing. The status flip to
// uploaded, the enqueue and the flip to processing are sequential writes; a
// crash between them leaves a session at uploaded with a job possibly
// enqueued, which the resume logic below and the worker's idempotency guard
// both tolerate.
func (m *Manager) CompleteUpload(ctx context.Context, userID, token, storageKey string) error {
	ctx, span := tracer.Start(ctx, "complete-upload")
	defer span.End()

	session, err := m.authorize(ctx, userID, token)
	if err != nil {
		return err
	}
	if storageKey != session.StorageKey {
		return fmt.Errorf("%w: storage key does not match session", models.ErrInvalidInput)
	}

	span.SetAttributes(attribute.String("session.id", session.SessionID))

	switch session.Status {
	case models.StatusInitiated, models.StatusUploaded:
		// Proceed; uploaded means a prior attempt crashed mid-way.
	case models.StatusProcessing, models.StatusDone:
		// Retry of an already-accepted completion.
		return nil
	default:
		return fmt.Errorf("%w: session is %s", models.ErrInvalidInput, session.Status)
	}

	_, found, err := m.store.Head(ctx, m.rawBucket, session.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to verify upload: %w", err)
	}
	if !found {
		return models.ErrObjectMissing
	}

	if session.Status == models.StatusInitiated {
		if err := m.catalog.TransitionStatus(ctx, session.SessionID, models.StatusInitiated, models.StatusUploaded); err != nil {
			return fmt.Errorf("failed to mark session uploaded: %w", err)
		}
	}

	job := &models.TranscodeJob{
		SessionID:   session.SessionID,
		UploadToken: session.UploadToken,
		StorageKey:  session.StorageKey,
		UserID:      session.UserID,
		Bucket:      m.rawBucket,
	}
	if err := m.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue transcode job: %w", err)
	}

	if err := m.catalog.TransitionStatus(ctx, session.SessionID, models.StatusUploaded, models.StatusProcessing); err != nil {
		// The job is already enqueued; the worker's lease acquisition
		// covers sessions still observed at uploaded.
		m.log.WarnContext(ctx, "Failed to mark session processing",
			"sessionId", session.SessionID,
			"error", err,
		)
	}

	metrics.UploadsCompleted.Inc()
	m.log.InfoContext(ctx, "Transcode job enqueued",
		"sessionId", session.SessionID,
		"userId", userID,
	)

	return nil
}

// SessionStatus is the result of GetStatus. Media is populated only when
// the session is done and a Media row exists.
type SessionStatus struct {
	Status models.SessionStatus `json:"status"`
	Media  *models.MediaBundle  `json:"media,omitempty"`
}

// GetStatus returns the session status and, when done, the joined media
// bundle. A done session with no Media row is a consistency anomaly; the
// status alone is returned rather than an error.
func (m *Manager) GetStatus(ctx context.Context, userID, token string) (*SessionStatus, error) {
	session, err := m.authorize(ctx, userID, token)
	if err != nil {
		return nil, err
	}

	result := &SessionStatus{Status: session.Status}
	if session.Status != models.StatusDone {
		return result, nil
	}

	bundle, err := m.catalog.GetMediaBundle(ctx, session.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrMediaNotFound) {
			m.log.WarnContext(ctx, "Done session has no media row",
				"sessionId", session.SessionID,
			)
			return result, nil
		}
		return nil, fmt.Errorf("failed to load media: %w", err)
	}

	result.Media = bundle
	return result, nil
}

// authorize looks up a session by token and enforces ownership.
func (m *Manager) authorize(ctx context.Context, userID, token string) (*models.UploadSession, error) {
	if userID == "" || token == "" {
		return nil, fmt.Errorf("%w: userId and token are required", models.ErrInvalidInput)
	}

	session, err := m.catalog.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, models.ErrForbidden
	}
	return session, nil
}
