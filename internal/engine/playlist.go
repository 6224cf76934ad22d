package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RenditionEntry describes one packaged rendition for the master playlist.
type RenditionEntry struct {
	Label string
	// EstimatedBandwidth is derived from the progressive file size, not
	// the true encoded bitrate.
	EstimatedBandwidth int64
}

// EstimateBandwidth approximates a rendition's bitrate in bits per second
// from its progressive file size and the source duration.
func EstimateBandwidth(progressiveSizeBytes int64, durationSeconds float64) int64 {
	duration := int64(durationSeconds)
	if duration < 1 {
		duration = 1
	}
	return (progressiveSizeBytes / duration) * 8
}

// WriteMasterPlaylist writes the top-level playlist referencing each
// rendition's packaged playlist entry point.
func WriteMasterPlaylist(dir string, entries []RenditionEntry) error {
	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#EXT-X-VERSION:3\n")

	for _, entry := range entries {
		builder.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d\n", entry.EstimatedBandwidth))
		builder.WriteString(fmt.Sprintf("%s/playlist.m3u8\n", entry.Label))
	}

	return os.WriteFile(filepath.Join(dir, "master.m3u8"), []byte(builder.String()), 0644)
}
