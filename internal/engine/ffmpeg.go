package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/reelworks/vod-pipeline/pkg/models"
)

// FFmpeg drives the ffmpeg and ffprobe binaries on the host.
type FFmpeg struct {
	log *slog.Logger
}

// NewFFmpeg creates an FFmpeg engine.
func NewFFmpeg(log *slog.Logger) *FFmpeg {
	return &FFmpeg{log: log}
}

// probeOutput mirrors the ffprobe JSON we care about.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs ffprobe and parses container duration plus the first video
// stream's dimensions and codec.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v (%s)", models.ErrProbeFailure, err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed ffprobe output: %v", models.ErrProbeFailure, err)
	}

	result := &ProbeResult{}
	if out.Format.Duration != "" {
		duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed duration: %v", models.ErrProbeFailure, err)
		}
		result.DurationSeconds = duration
	}

	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			result.Width = stream.Width
			result.Height = stream.Height
			result.Codec = stream.CodecName
			break
		}
	}

	return result, nil
}

// Encode runs ffmpeg for one rendition. Progressive encodes produce a
// faststart mp4 at a constrained bitrate; segmented encodes remux that
// rendition into a VOD package of fixed-duration segments.
func (f *FFmpeg) Encode(ctx context.Context, spec EncodeSpec) error {
	args := f.buildArgs(spec)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Monitor stderr for progress and errors
	go func() {
		defer wg.Done()
		f.monitorOutput(ctx, stderrPipe)
	}()

	// Drain stdout
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.Discard, stdoutPipe)
	}()

	cmdErr := cmd.Wait()
	wg.Wait()

	if cmdErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: context canceled", models.ErrEncodeFailure)
		}
		return fmt.Errorf("%w: %v", models.ErrEncodeFailure, cmdErr)
	}

	return nil
}

// buildArgs constructs the ffmpeg command arguments for one spec.
func (f *FFmpeg) buildArgs(spec EncodeSpec) []string {
	if spec.Segmented {
		return []string{
			"-y",
			"-i", spec.InputPath,
			"-c", "copy",
			"-hls_time", strconv.Itoa(spec.SegmentDuration),
			"-hls_playlist_type", "vod",
			"-hls_list_size", "0",
			"-hls_segment_filename", filepath.Join(spec.OutputDir, "seg_%03d.ts"),
			filepath.Join(spec.OutputDir, "playlist.m3u8"),
		}
	}

	videoBitrate := fmt.Sprintf("%dk", spec.VideoBitrateKbps)
	// Buffer sized at 2x the target bitrate.
	bufSize := fmt.Sprintf("%dk", spec.VideoBitrateKbps*2)

	return []string{
		"-y",
		"-i", spec.InputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", spec.TargetHeight),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", videoBitrate,
		"-maxrate", videoBitrate,
		"-bufsize", bufSize,
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", spec.AudioBitrateKbps),
		"-movflags", "+faststart",
		spec.OutputPath,
	}
}

// ExtractFrame writes a single frame at the given timestamp. Seeking before
// the input uses key-frame seeking, which is fast.
func (f *FFmpeg) ExtractFrame(ctx context.Context, inputPath string, atSeconds int, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-ss", strconv.Itoa(atSeconds),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
		"-y",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: frame extraction: %v (%s)", models.ErrEncodeFailure, err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// monitorOutput reads and logs ffmpeg output.
func (f *FFmpeg) monitorOutput(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
			line := scanner.Text()
			if strings.Contains(line, "frame=") || strings.Contains(line, "time=") {
				f.log.Debug("FFmpeg progress", "output", line)
			} else if strings.Contains(line, "error") || strings.Contains(line, "Error") {
				f.log.Warn("FFmpeg warning", "output", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		f.log.Warn("FFmpeg output scanner error", "error", err)
	}
}
