package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/agrodatos/mag-scraper/pipeline"
)

func TestPersistWritesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	writer := pipeline.NewSnapshotWriter(path)

	doc := map[string]any{"camiones": 120}
	if err := persist(writer, doc); err != nil {
		t.Fatalf("persist: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("snapshot file is empty")
	}
}

func TestPersistRejectsUnencodableDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	writer := pipeline.NewSnapshotWriter(path)

	if err := persist(writer, map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatalf("expected error for unencodable document")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    slog.Level
	}{
		{"default", false, slog.LevelInfo},
		{"verbose", true, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, level := newLogger(tt.verbose)
			if logger == nil {
				t.Fatalf("expected a logger")
			}
			if level.Level() != tt.want {
				t.Fatalf("level = %v, want %v", level.Level(), tt.want)
			}
		})
	}
}
