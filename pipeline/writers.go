// Package pipeline provides the persistence sinks: the atomic JSON
// snapshot writer and the debug-artifact writer.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sink accepts one finished record per run and persists it atomically.
type Sink interface {
	Write(doc any) error
}

// SnapshotWriter serializes a document to pretty-printed UTF-8 JSON
// (non-ASCII left unescaped) and replaces the target file in one rename,
// fully overwriting any prior snapshot.
type SnapshotWriter struct {
	path string
}

// NewSnapshotWriter builds a writer for the given target path.
func NewSnapshotWriter(path string) *SnapshotWriter {
	return &SnapshotWriter{path: path}
}

// Write persists doc. The temp file lives in the target directory so the
// final rename stays on one filesystem.
func (w *SnapshotWriter) Write(doc any) error {
	if err := ensureDir(w.path); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Validate ensures the snapshot file exists and has content.
func (w *SnapshotWriter) Validate() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("stat snapshot file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("snapshot file is empty")
	}
	return nil
}

// Path returns the target file path.
func (w *SnapshotWriter) Path() string {
	return w.path
}

// DebugWriter stores raw fetched documents under a debug directory with
// timestamped names, one file per failed run.
type DebugWriter struct {
	dir string
	now func() time.Time
}

// NewDebugWriter builds a debug writer rooted at dir.
func NewDebugWriter(dir string) *DebugWriter {
	return &DebugWriter{dir: dir, now: time.Now}
}

// SaveHTML writes body under a timestamped name and returns the path.
func (w *DebugWriter) SaveHTML(name string, body []byte) (string, error) {
	filename := fmt.Sprintf("%s_%s.html", name, w.now().Format("20060102T150405"))
	path := filepath.Join(w.dir, filename)
	if err := ensureDir(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write debug artifact: %w", err)
	}
	return path, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
