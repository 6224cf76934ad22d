package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectRenditions(t *testing.T) {
	tests := []struct {
		name         string
		sourceHeight int
		wantLabels   []string
	}{
		{"1080p source selects full ladder", 1080, []string{"1080p", "720p", "480p", "360p"}},
		{"720p source drops 1080p", 720, []string{"720p", "480p", "360p"}},
		{"480p source", 480, []string{"480p", "360p"}},
		{"between rungs", 600, []string{"480p", "360p"}},
		{"4k source selects everything", 2160, []string{"1080p", "720p", "480p", "360p"}},
		{"source below the ladder selects nothing", 240, nil},
		{"unknown height imposes no ceiling", 0, []string{"1080p", "720p", "480p", "360p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectRenditions(DefaultLadder, tt.sourceHeight)

			if len(got) != len(tt.wantLabels) {
				t.Fatalf("SelectRenditions(%d) returned %d renditions, want %d", tt.sourceHeight, len(got), len(tt.wantLabels))
			}
			for i, r := range got {
				if r.Label != tt.wantLabels[i] {
					t.Errorf("rendition[%d].Label = %s, want %s", i, r.Label, tt.wantLabels[i])
				}
			}
		})
	}
}

func TestSelectRenditions_CopiesLadder(t *testing.T) {
	got := SelectRenditions(DefaultLadder, 0)
	got[0].Label = "mutated"

	if DefaultLadder[0].Label != "1080p" {
		t.Error("SelectRenditions() with unknown height must not alias the ladder")
	}
}

func TestRenditionByLabel(t *testing.T) {
	r := RenditionByLabel(DefaultLadder, "720p")
	if r == nil {
		t.Fatal("RenditionByLabel(720p) = nil")
	}
	if r.Height != 720 || r.VideoBitrateKbps != 2500 {
		t.Errorf("RenditionByLabel(720p) = %+v", r)
	}

	if RenditionByLabel(DefaultLadder, "144p") != nil {
		t.Error("RenditionByLabel(144p) should be nil")
	}
}

func TestEstimateBandwidth(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		duration float64
		want     int64
	}{
		{"one megabyte over ten seconds", 1_000_000, 10, 800_000},
		{"sub-second duration clamps to one", 500_000, 0.4, 4_000_000},
		{"zero duration clamps to one", 500_000, 0, 4_000_000},
		{"fractional duration truncates", 1_000_000, 10.9, 800_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateBandwidth(tt.size, tt.duration); got != tt.want {
				t.Errorf("EstimateBandwidth(%d, %v) = %d, want %d", tt.size, tt.duration, got, tt.want)
			}
		})
	}
}

func TestWriteMasterPlaylist(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "playlist-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	entries := []RenditionEntry{
		{Label: "1080p", EstimatedBandwidth: 5_500_000},
		{Label: "720p", EstimatedBandwidth: 2_750_000},
	}

	if err := WriteMasterPlaylist(tmpDir, entries); err != nil {
		t.Fatalf("WriteMasterPlaylist() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "master.m3u8"))
	if err != nil {
		t.Fatalf("Failed to read master.m3u8: %v", err)
	}

	contentStr := string(content)

	if !strings.HasPrefix(contentStr, "#EXTM3U\n") {
		t.Error("master.m3u8 missing #EXTM3U header")
	}
	if !strings.Contains(contentStr, "#EXT-X-STREAM-INF:BANDWIDTH=5500000") {
		t.Error("master.m3u8 missing 1080p bandwidth")
	}
	if !strings.Contains(contentStr, "1080p/playlist.m3u8") {
		t.Error("master.m3u8 missing 1080p playlist reference")
	}
	if !strings.Contains(contentStr, "720p/playlist.m3u8") {
		t.Error("master.m3u8 missing 720p playlist reference")
	}
}

func TestBuildArgs_Progressive(t *testing.T) {
	f := NewFFmpeg(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	args := f.buildArgs(EncodeSpec{
		InputPath:        "/tmp/in.mp4",
		OutputPath:       "/tmp/out/720p.mp4",
		TargetHeight:     720,
		VideoBitrateKbps: 2500,
		AudioBitrateKbps: 128,
	})

	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-vf scale=-2:720",
		"-c:v libx264",
		"-b:v 2500k",
		"-maxrate 2500k",
		"-bufsize 5000k",
		"-b:a 128k",
		"-movflags +faststart",
		"/tmp/out/720p.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("buildArgs() missing %q in %q", want, joined)
		}
	}
}

func TestBuildArgs_Segmented(t *testing.T) {
	f := NewFFmpeg(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	args := f.buildArgs(EncodeSpec{
		InputPath:       "/tmp/out/720p.mp4",
		OutputDir:       "/tmp/out/hls/720p",
		SegmentDuration: 6,
		Segmented:       true,
	})

	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-c copy",
		"-hls_time 6",
		"-hls_playlist_type vod",
		"-hls_list_size 0",
		filepath.Join("/tmp/out/hls/720p", "seg_%03d.ts"),
		filepath.Join("/tmp/out/hls/720p", "playlist.m3u8"),
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("buildArgs() missing %q in %q", want, joined)
		}
	}

	if strings.Contains(joined, "libx264") {
		t.Error("segmented packaging must remux, not re-encode")
	}
}

func TestProbeOutputParsing(t *testing.T) {
	raw := `{
		"format": {"duration": "123.456"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 240}
		]
	}`

	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}

	if out.Format.Duration != "123.456" {
		t.Errorf("Duration = %s, want 123.456", out.Format.Duration)
	}

	var width, height int
	var codec string
	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			width = stream.Width
			height = stream.Height
			codec = stream.CodecName
			break
		}
	}

	if codec != "h264" || width != 1920 || height != 1080 {
		t.Errorf("first video stream = %s %dx%d, want h264 1920x1080", codec, width, height)
	}
}
