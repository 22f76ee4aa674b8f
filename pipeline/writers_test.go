package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agrodatos/mag-scraper/models"
)

func TestSnapshotWriterWriteAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "mercado.json")

	doc := &models.MarketDocument{
		Metadata: models.Metadata{
			FechaActualizacion: "2026-08-30T09:00:00-03:00",
			Fuente:             "http://example.test",
			Descripcion:        "Datos diarios del Mercado Agroganadero de Argentina",
		},
		Categorias: map[string]*models.CategoryRecord{
			"NOVILLOS": {
				Categoria: "NOVILLOS",
				Labels:    []string{"29/08/2026"},
				Precios:   []float64{2500.5},
				Cabezas:   []float64{1200},
			},
		},
	}

	w := NewSnapshotWriter(path)
	if err := w.Write(doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	var decoded models.MarketDocument
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if decoded.Categorias["NOVILLOS"].Precios[0] != 2500.5 {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}

	// Atomic replacement leaves no temp files behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the snapshot file, got %d entries", len(entries))
	}
}

func TestSnapshotWriterOverwritesPriorSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	w := NewSnapshotWriter(path)

	first := &models.DashboardDocument{Dashboard: map[string]any{"camiones": 1}}
	second := &models.DashboardDocument{Dashboard: map[string]any{"camiones": 2}}

	if err := w.Write(first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Write(second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded models.DashboardDocument
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Dashboard["camiones"] != float64(2) {
		t.Fatalf("camiones = %v, want the second snapshot", decoded.Dashboard["camiones"])
	}
}

func TestSnapshotWriterKeepsNonASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	w := NewSnapshotWriter(path)

	doc := map[string]string{"descripcion": "Ñandú & categorías"}
	if err := w.Write(doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "Ñandú") {
		t.Fatalf("non-ASCII must stay unescaped, got %s", content)
	}
	if strings.Contains(content, `\u0026`) {
		t.Fatalf("html escaping must be disabled, got %s", content)
	}
	if !strings.Contains(content, "&") {
		t.Fatalf("ampersand must survive verbatim, got %s", content)
	}
}

func TestSnapshotWriterValidateMissingFile(t *testing.T) {
	w := NewSnapshotWriter(filepath.Join(t.TempDir(), "never-written.json"))
	if err := w.Validate(); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}

func TestDebugWriterSaveHTML(t *testing.T) {
	dir := t.TempDir()
	w := NewDebugWriter(filepath.Join(dir, "debug"))
	w.now = func() time.Time {
		return time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
	}

	path, err := w.SaveHTML("dashboard", []byte("<html></html>"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "dashboard_20260830T143000.html" {
		t.Fatalf("unexpected artifact name %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(raw) != "<html></html>" {
		t.Fatalf("artifact content = %q", raw)
	}
}
