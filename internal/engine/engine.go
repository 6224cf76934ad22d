// Package engine abstracts the external media-processing tool (ffmpeg and
// ffprobe on the host) behind an interface so the pipeline can be tested
// against a fake without spawning subprocesses.
package engine

import "context"

// ProbeResult holds container and first-video-stream metadata.
type ProbeResult struct {
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
}

// EncodeSpec declares one encode invocation. When Segmented is false the
// output is a standalone progressive file; when true the output is a
// segmented VOD package written under OutputDir.
type EncodeSpec struct {
	InputPath string

	// Progressive output.
	OutputPath string

	// Segmented output.
	OutputDir       string
	SegmentDuration int

	TargetHeight     int
	VideoBitrateKbps int
	AudioBitrateKbps int
	Segmented        bool
}

// Engine is the injected media-processing capability.
type Engine interface {
	// Probe extracts container duration and video stream dimensions.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Encode produces the output declared by spec, failing on a non-zero
	// tool exit status.
	Encode(ctx context.Context, spec EncodeSpec) error

	// ExtractFrame writes a single still frame at the given timestamp.
	ExtractFrame(ctx context.Context, inputPath string, atSeconds int, outputPath string) error
}
