// Package pipeline implements the transcode worker: queue consumption, the
// per-job processing state machine, and artifact publishing.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Workspace is a scoped temporary directory exclusively owned by one job
// execution. It is removed on every exit path.
//
//	<root>/source<ext>      downloaded raw upload (never published)
//	<root>/out/...          everything produced, published as-is
type Workspace struct {
	root string
	log  *slog.Logger
}

// NewWorkspace creates a fresh workspace under baseDir.
func NewWorkspace(baseDir, sessionID string, log *slog.Logger) (*Workspace, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	root, err := os.MkdirTemp(baseDir, sessionID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "out", "thumbs"), 0755); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Workspace{root: root, log: log}, nil
}

// SourcePath returns the download target for the raw upload.
func (w *Workspace) SourcePath(storageKey string) string {
	return filepath.Join(w.root, "source"+filepath.Ext(storageKey))
}

// OutDir returns the directory whose contents get published.
func (w *Workspace) OutDir() string {
	return filepath.Join(w.root, "out")
}

// ProgressivePath returns the output path of a progressive rendition.
func (w *Workspace) ProgressivePath(label string) string {
	return filepath.Join(w.root, "out", label+".mp4")
}

// ThumbnailPath returns the output path of one extracted frame.
func (w *Workspace) ThumbnailPath(index int) string {
	return filepath.Join(w.root, "out", "thumbs", fmt.Sprintf("thumb_%d.jpg", index))
}

// HLSDir returns the root of the segmented packages.
func (w *Workspace) HLSDir() string {
	return filepath.Join(w.root, "out", "hls")
}

// RenditionHLSDir creates and returns the per-rendition package directory.
func (w *Workspace) RenditionHLSDir(label string) (string, error) {
	dir := filepath.Join(w.HLSDir(), label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create hls subdir %s: %w", label, err)
	}
	return dir, nil
}

// Download copies the object body into the workspace source file.
func (w *Workspace) Download(ctx context.Context, body io.Reader, storageKey string) (string, int64, error) {
	path := w.SourcePath(storageKey)

	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create source file: %w", err)
	}

	written, err := io.Copy(file, body)
	if err != nil {
		file.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write source file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to close source file: %w", err)
	}

	return path, written, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.root); err != nil {
		w.log.Warn("Failed to remove workspace", "path", w.root, "error", err)
	}
}
