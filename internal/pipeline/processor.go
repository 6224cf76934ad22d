package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reelworks/vod-pipeline/internal/catalog"
	"github.com/reelworks/vod-pipeline/internal/engine"
	"github.com/reelworks/vod-pipeline/internal/metrics"
	"github.com/reelworks/vod-pipeline/internal/session"
	"github.com/reelworks/vod-pipeline/pkg/models"
)

var tracer = otel.Tracer("vod-worker")

// Pipeline defaults
const (
	DefaultThumbnailCount  = 3
	DefaultSegmentDuration = 6
)

// Catalog is the catalog-store surface the processor needs.
type Catalog interface {
	GetSession(ctx context.Context, sessionID string) (*models.UploadSession, error)
	AcquireLease(ctx context.Context, sessionID, owner string, duration time.Duration) (string, error)
	MarkFailed(ctx context.Context, sessionID, errorMessage string) error
	CommitMedia(ctx context.Context, sessionID, leaseToken string, media *models.Media, variants []models.MediaVariant, thumbs []models.Thumbnail) error
}

// ObjectStore is the object-store surface the processor needs.
type ObjectStore interface {
	ObjectPutter
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Processor drives one transcode job through the pipeline state machine.
type Processor struct {
	catalog         Catalog
	store           ObjectStore
	engine          engine.Engine
	publisher       *Publisher
	ladder          []engine.Rendition
	workerID        string
	workDir         string
	processedBucket string
	maxDuration     time.Duration
	thumbCount      int
	segmentDuration int
	log             *slog.Logger
}

// ProcessorConfig holds processor dependencies.
type ProcessorConfig struct {
	Catalog         Catalog
	Store           ObjectStore
	Engine          engine.Engine
	Ladder          []engine.Rendition
	WorkerID        string
	WorkDir         string
	ProcessedBucket string
	MaxDuration     time.Duration
	Logger          *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(cfg *ProcessorConfig) *Processor {
	ladder := cfg.Ladder
	if ladder == nil {
		ladder = engine.DefaultLadder
	}
	return &Processor{
		catalog:         cfg.Catalog,
		store:           cfg.Store,
		engine:          cfg.Engine,
		publisher:       NewPublisher(cfg.Store, cfg.ProcessedBucket, cfg.Logger),
		ladder:          ladder,
		workerID:        cfg.WorkerID,
		workDir:         cfg.WorkDir,
		processedBucket: cfg.ProcessedBucket,
		maxDuration:     cfg.MaxDuration,
		thumbCount:      DefaultThumbnailCount,
		segmentDuration: DefaultSegmentDuration,
		log:             cfg.Logger,
	}
}

// ThumbnailTimestamps returns the frame-extraction timestamps for a source
// of the given duration: min(duration-1, i*floor(duration/(count+1))) for
// i = 1..count, clamped to stay within the stream.
func ThumbnailTimestamps(durationSeconds float64, count int) []int {
	duration := int(durationSeconds)
	spacing := duration / (count + 1)

	timestamps := make([]int, 0, count)
	for i := 1; i <= count; i++ {
		t := i * spacing
		if t > duration-1 {
			t = duration - 1
		}
		if t < 0 {
			t = 0
		}
		timestamps = append(timestamps, t)
	}
	return timestamps
}

// Process runs one job to completion or terminal failure. Redelivery of an
// already-done session is acknowledged without side effects; a session
// leased by another live worker is rejected so the queue redelivers later.
func (p *Processor) Process(ctx context.Context, job *models.TranscodeJob) error {
	ctx, span := tracer.Start(ctx, "process-job")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", job.SessionID),
		attribute.String("session.storage_key", job.StorageKey),
	)

	// Idempotency guard: a prior run may already have finished this
	// session.
	sess, err := p.catalog.GetSession(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.Status == models.StatusDone {
		p.log.InfoContext(ctx, "Session already done, skipping redelivered job",
			"sessionId", job.SessionID,
		)
		return nil
	}
	if sess.Status == models.StatusFailed {
		p.log.InfoContext(ctx, "Session already failed, skipping redelivered job",
			"sessionId", job.SessionID,
		)
		return nil
	}

	leaseToken, err := p.catalog.AcquireLease(ctx, job.SessionID, p.workerID, catalog.DefaultLeaseDuration)
	if err != nil {
		if errors.Is(err, models.ErrLeaseNotAcquired) {
			return fmt.Errorf("session %s: %w", job.SessionID, err)
		}
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	var processingErr error
	defer func() {
		if processingErr == nil {
			return
		}
		// Best effort: the original error still propagates so the
		// queue's retry accounting is driven by it.
		if failErr := p.catalog.MarkFailed(ctx, job.SessionID, processingErr.Error()); failErr != nil {
			p.log.ErrorContext(ctx, "Failed to mark session failed",
				"sessionId", job.SessionID,
				"error", failErr,
			)
		}
	}()

	processingErr = p.run(ctx, job, leaseToken)
	return processingErr
}

// run executes the pipeline stages inside the lease.
func (p *Processor) run(ctx context.Context, job *models.TranscodeJob, leaseToken string) error {
	start := time.Now()

	ws, err := NewWorkspace(p.workDir, job.SessionID, p.log)
	if err != nil {
		return err
	}
	defer ws.Remove()

	// Download
	sourcePath, err := p.download(ctx, job, ws)
	if err != nil {
		return err
	}

	// Probe
	probe, err := p.probe(ctx, sourcePath)
	if err != nil {
		return err
	}
	if p.maxDuration > 0 && probe.DurationSeconds > p.maxDuration.Seconds() {
		return fmt.Errorf("%w: %.0fs exceeds %.0fs", models.ErrDurationExceeded,
			probe.DurationSeconds, p.maxDuration.Seconds())
	}

	// Thumbnails
	thumbCount, err := p.extractThumbnails(ctx, sourcePath, probe.DurationSeconds, ws)
	if err != nil {
		return err
	}

	// Variant selection and ABR encode
	selected := engine.SelectRenditions(p.ladder, probe.Height)
	sizes, err := p.encodeRenditions(ctx, sourcePath, selected, ws)
	if err != nil {
		return err
	}

	// Segmented packaging and master playlist
	if err := p.packageRenditions(ctx, selected, sizes, probe.DurationSeconds, ws); err != nil {
		return err
	}

	// Publish
	prefix := session.ProcessedPrefix(job.UserID, job.SessionID)
	publishStart := time.Now()
	if err := p.publisher.Publish(ctx, ws.OutDir(), prefix); err != nil {
		return err
	}
	metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(publishStart).Seconds())

	// Catalog commit: one transaction ending with the status flip.
	media := &models.Media{
		MediaID:         uuid.New().String(),
		SessionID:       job.SessionID,
		Type:            models.MediaTypeVideo,
		DurationSeconds: probe.DurationSeconds,
		Width:           probe.Width,
		Height:          probe.Height,
	}

	variants := make([]models.MediaVariant, 0, len(selected))
	for _, r := range selected {
		variants = append(variants, models.MediaVariant{
			VariantID:  uuid.New().String(),
			MediaID:    media.MediaID,
			Quality:    r.Label,
			StorageKey: prefix + r.Label + ".mp4",
			SizeBytes:  sizes[r.Label],
		})
	}

	thumbs := make([]models.Thumbnail, 0, thumbCount)
	for i := 1; i <= thumbCount; i++ {
		thumbs = append(thumbs, models.Thumbnail{
			ThumbnailID: uuid.New().String(),
			MediaID:     media.MediaID,
			StorageKey:  fmt.Sprintf("%sthumbs/thumb_%d.jpg", prefix, i),
			IsSelected:  false,
		})
	}

	if err := p.catalog.CommitMedia(ctx, job.SessionID, leaseToken, media, variants, thumbs); err != nil {
		return err
	}

	duration := time.Since(start).Seconds()
	metrics.ProcessingDuration.Observe(duration)

	p.log.InfoContext(ctx, "Session processed",
		"sessionId", job.SessionID,
		"mediaId", media.MediaID,
		"variants", len(variants),
		"thumbnails", len(thumbs),
		"durationSeconds", duration,
	)

	return nil
}

func (p *Processor) download(ctx context.Context, job *models.TranscodeJob, ws *Workspace) (string, error) {
	ctx, span := tracer.Start(ctx, "download-source")
	defer span.End()

	start := time.Now()

	body, err := p.store.Get(ctx, job.Bucket, job.StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	defer body.Close()

	path, written, err := ws.Download(ctx, body, job.StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}

	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int64("source.size_bytes", written))
	p.log.InfoContext(ctx, "Downloaded source",
		"sessionId", job.SessionID,
		"sizeBytes", written,
	)

	return path, nil
}

func (p *Processor) probe(ctx context.Context, sourcePath string) (*engine.ProbeResult, error) {
	ctx, span := tracer.Start(ctx, "probe-source")
	defer span.End()

	start := time.Now()
	probe, err := p.engine.Probe(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Float64("source.duration_seconds", probe.DurationSeconds),
		attribute.Int("source.width", probe.Width),
		attribute.Int("source.height", probe.Height),
		attribute.String("source.codec", probe.Codec),
	)

	return probe, nil
}

// extractThumbnails writes the still frames and returns how many were
// produced.
func (p *Processor) extractThumbnails(ctx context.Context, sourcePath string, durationSeconds float64, ws *Workspace) (int, error) {
	ctx, span := tracer.Start(ctx, "extract-thumbnails")
	defer span.End()

	start := time.Now()

	timestamps := ThumbnailTimestamps(durationSeconds, p.thumbCount)
	for i, ts := range timestamps {
		if err := p.engine.ExtractFrame(ctx, sourcePath, ts, ws.ThumbnailPath(i+1)); err != nil {
			return 0, err
		}
	}

	metrics.StageDuration.WithLabelValues("thumbnails").Observe(time.Since(start).Seconds())
	return len(timestamps), nil
}

// encodeRenditions produces one progressive file per selected rendition and
// returns the output sizes by label.
func (p *Processor) encodeRenditions(ctx context.Context, sourcePath string, selected []engine.Rendition, ws *Workspace) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "encode-renditions")
	defer span.End()

	start := time.Now()
	sizes := make(map[string]int64, len(selected))

	for _, r := range selected {
		outPath := ws.ProgressivePath(r.Label)
		spec := engine.EncodeSpec{
			InputPath:        sourcePath,
			OutputPath:       outPath,
			TargetHeight:     r.Height,
			VideoBitrateKbps: r.VideoBitrateKbps,
			AudioBitrateKbps: r.AudioBitrateKbps,
		}
		if err := p.engine.Encode(ctx, spec); err != nil {
			return nil, fmt.Errorf("rendition %s: %w", r.Label, err)
		}

		info, err := os.Stat(outPath)
		if err != nil {
			return nil, fmt.Errorf("%w: missing encode output for %s: %v", models.ErrEncodeFailure, r.Label, err)
		}
		sizes[r.Label] = info.Size()
	}

	metrics.StageDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("renditions.encoded", len(selected)))
	return sizes, nil
}

// packageRenditions produces the per-rendition segmented packages and the
// master playlist. Nothing is written when no rendition was selected.
func (p *Processor) packageRenditions(ctx context.Context, selected []engine.Rendition, sizes map[string]int64, durationSeconds float64, ws *Workspace) error {
	if len(selected) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "package-renditions")
	defer span.End()

	start := time.Now()
	entries := make([]engine.RenditionEntry, 0, len(selected))

	for _, r := range selected {
		dir, err := ws.RenditionHLSDir(r.Label)
		if err != nil {
			return err
		}
		spec := engine.EncodeSpec{
			InputPath:       ws.ProgressivePath(r.Label),
			OutputDir:       dir,
			SegmentDuration: p.segmentDuration,
			Segmented:       true,
		}
		if err := p.engine.Encode(ctx, spec); err != nil {
			return fmt.Errorf("packaging %s: %w", r.Label, err)
		}

		entries = append(entries, engine.RenditionEntry{
			Label:              r.Label,
			EstimatedBandwidth: engine.EstimateBandwidth(sizes[r.Label], durationSeconds),
		})
	}

	if err := engine.WriteMasterPlaylist(ws.HLSDir(), entries); err != nil {
		return fmt.Errorf("failed to write master playlist: %w", err)
	}

	metrics.StageDuration.WithLabelValues("package").Observe(time.Since(start).Seconds())
	return nil
}
