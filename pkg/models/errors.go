package models

import "errors"

// Sentinel errors for session and pipeline operations.
var (
	// Request-path errors, surfaced synchronously with no state change.
	ErrInvalidInput    = errors.New("invalid input")
	ErrTooLarge        = errors.New("declared size exceeds ceiling")
	ErrForbidden       = errors.New("session not owned by caller")
	ErrSessionNotFound = errors.New("session not found")
	ErrObjectMissing   = errors.New("uploaded object not found in storage")

	// Job payload validation errors.
	ErrMissingSessionID  = errors.New("sessionId is required")
	ErrMissingStorageKey = errors.New("storageKey is required")
	ErrMissingUserID     = errors.New("userId is required")
	ErrMissingBucket     = errors.New("bucket is required")
	ErrJobParseFailed    = errors.New("failed to parse job")

	// Pipeline errors, terminal for the session.
	ErrDurationExceeded = errors.New("source duration exceeds ceiling")
	ErrProbeFailure     = errors.New("media engine probe failed")
	ErrEncodeFailure    = errors.New("media engine encode failed")
	ErrDownloadFailed   = errors.New("failed to download source")
	ErrPublishFailure   = errors.New("failed to publish artifacts")
	ErrContextCanceled  = errors.New("context canceled")

	// Catalog errors.
	ErrMediaNotFound        = errors.New("media not found")
	ErrInvalidTransition    = errors.New("illegal session status transition")
	ErrLeaseNotAcquired     = errors.New("session lease held by another worker")
	ErrSessionAlreadyExists = errors.New("session already exists")
)
