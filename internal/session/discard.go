package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reelworks/vod-pipeline/internal/metrics"
	"github.com/reelworks/vod-pipeline/pkg/models"
)

// storedKey pairs an object key with the bucket it lives in. The raw upload
// and the published artifacts live in different buckets.
type storedKey struct {
	bucket string
	key    string
}

// DiscardUpload removes everything associated with a session: every object
// stored for it and every catalog row, the session itself last. Object
// deletions are attempted independently; a failed key is logged for the
// reconciliation sweep and does not abort the rest. Catalog rows are
// deleted in dependency order: thumbnails, variants, media, then session.
func (m *Manager) DiscardUpload(ctx context.Context, userID, token string) error {
	ctx, span := tracer.Start(ctx, "discard-upload")
	defer span.End()

	session, err := m.authorize(ctx, userID, token)
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.String("session.id", session.SessionID))

	keys := []storedKey{{m.rawBucket, session.StorageKey}}

	bundle, err := m.catalog.GetMediaBundle(ctx, session.SessionID)
	switch {
	case err == nil:
		for _, v := range bundle.Variants {
			keys = append(keys, storedKey{m.processedBucket, v.StorageKey})
		}
		for _, t := range bundle.Thumbnails {
			keys = append(keys, storedKey{m.processedBucket, t.StorageKey})
		}
		// Segment counts are not tracked per row; enumerate the whole
		// hls prefix from storage.
		hlsKeys, listErr := m.store.List(ctx, m.processedBucket, HLSPrefix(session.UserID, session.SessionID))
		if listErr != nil {
			m.log.WarnContext(ctx, "Failed to list hls prefix during discard",
				"sessionId", session.SessionID,
				"error", listErr,
			)
		}
		for _, k := range hlsKeys {
			keys = append(keys, storedKey{m.processedBucket, k})
		}
	case errors.Is(err, models.ErrMediaNotFound):
		bundle = nil
	default:
		return fmt.Errorf("failed to load media for discard: %w", err)
	}

	var undeleted []string
	for _, sk := range keys {
		if delErr := m.store.Delete(ctx, sk.bucket, sk.key); delErr != nil {
			undeleted = append(undeleted, sk.key)
			m.log.ErrorContext(ctx, "Failed to delete object during discard",
				"sessionId", session.SessionID,
				"bucket", sk.bucket,
				"key", sk.key,
				"error", delErr,
			)
		}
	}
	if len(undeleted) > 0 {
		// Left for a periodic reconciliation sweep.
		metrics.DiscardOrphanedKeys.Add(float64(len(undeleted)))
		m.log.WarnContext(ctx, "Discard left orphaned objects",
			"sessionId", session.SessionID,
			"keys", undeleted,
		)
	}

	if bundle != nil {
		if err := m.catalog.DeleteMediaRows(ctx, session.SessionID, bundle); err != nil {
			return fmt.Errorf("failed to delete media rows: %w", err)
		}
	}
	if err := m.catalog.DeleteSession(ctx, session.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	metrics.UploadsDiscarded.Inc()
	m.log.InfoContext(ctx, "Upload session discarded",
		"sessionId", session.SessionID,
		"userId", userID,
		"objectsDeleted", len(keys)-len(undeleted),
	)

	return nil
}
