package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reelworks/vod-pipeline/internal/metrics"
	"github.com/reelworks/vod-pipeline/pkg/models"
)

// Publish configuration
const (
	MaxConcurrentPublishes = 20
)

// ObjectPutter is the object-store surface the publisher needs.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Publisher uploads every produced artifact to the processed bucket.
type Publisher struct {
	store  ObjectPutter
	bucket string
	log    *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(store ObjectPutter, bucket string, log *slog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		log:    log,
	}
}

// Publish walks outDir and uploads every file under keyPrefix, preserving
// relative paths. Uploads run concurrently with bounded parallelism; the
// first failure wins and is reported as a publish failure. Artifacts
// already uploaded before a failure are left behind, not rolled back.
func (p *Publisher) Publish(ctx context.Context, outDir, keyPrefix string) error {
	ctx, span := tracer.Start(ctx, "publish-artifacts")
	defer span.End()

	var filesUploaded atomic.Int64
	var totalBytes atomic.Int64
	var firstErr atomic.Pointer[error]

	sem := make(chan struct{}, MaxConcurrentPublishes)
	var wg sync.WaitGroup

	walkErr := filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if firstErr.Load() != nil {
			return nil
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return fmt.Errorf("%w: during publish walk", models.ErrContextCanceled)
		}

		wg.Add(1)

		go func(filePath string, fileInfo os.FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			if firstErr.Load() != nil {
				return
			}

			relPath, err := filepath.Rel(outDir, filePath)
			if err != nil {
				wrappedErr := fmt.Errorf("failed to get relative path: %w", err)
				firstErr.CompareAndSwap(nil, &wrappedErr)
				return
			}
			key := keyPrefix + filepath.ToSlash(relPath)

			file, err := os.Open(filePath)
			if err != nil {
				wrappedErr := fmt.Errorf("failed to open file %s: %w", filePath, err)
				firstErr.CompareAndSwap(nil, &wrappedErr)
				return
			}
			defer file.Close()

			if err := p.store.Put(ctx, p.bucket, key, file, ContentTypeForKey(key)); err != nil {
				wrappedErr := fmt.Errorf("failed to upload %s: %w", key, err)
				firstErr.CompareAndSwap(nil, &wrappedErr)
				return
			}

			filesUploaded.Add(1)
			totalBytes.Add(fileInfo.Size())
			metrics.ArtifactsPublished.Inc()

			p.log.DebugContext(ctx, "Published artifact", "key", key)
		}(path, info)

		return nil
	})

	wg.Wait()

	if walkErr != nil {
		return fmt.Errorf("%w: %v", models.ErrPublishFailure, walkErr)
	}
	if errPtr := firstErr.Load(); errPtr != nil {
		return fmt.Errorf("%w: %v", models.ErrPublishFailure, *errPtr)
	}

	uploaded := filesUploaded.Load()
	bytes := totalBytes.Load()

	span.SetAttributes(
		attribute.Int64("files.published", uploaded),
		attribute.Int64("bytes.total", bytes),
	)

	p.log.InfoContext(ctx, "Artifact publish complete",
		"keyPrefix", keyPrefix,
		"filesPublished", uploaded,
		"totalBytes", bytes,
	)

	return nil
}

// ContentTypeForKey selects the upload content type by file extension.
func ContentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(key, ".ts"):
		return "video/MP2T"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
