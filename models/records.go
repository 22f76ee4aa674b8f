// Package models defines the value objects exchanged between the fetch,
// extraction, and persistence layers. All of them live for a single run.
package models

// FetchResult is the outcome of one fetch operation, retries included.
// It is created once by the fetcher and never mutated afterwards.
type FetchResult struct {
	// Body is the raw response payload of the final successful attempt.
	Body []byte
	// StatusCode is the HTTP status of the last response seen, 0 when the
	// transport failed before producing one.
	StatusCode int
	// Attempts is the number of requests actually issued.
	Attempts int
}

// CategoryRecord holds the price/head-count time series for one livestock
// category. Precios and Cabezas, when present, are index-aligned with
// Labels; either series may be empty when the source omitted it.
type CategoryRecord struct {
	Categoria string    `json:"categoria"`
	Labels    []string  `json:"labels"`
	Precios   []float64 `json:"precios"`
	Cabezas   []float64 `json:"cabezas"`
}

// Metadata describes one persisted snapshot.
type Metadata struct {
	FechaActualizacion string `json:"fecha_actualizacion"`
	FechaLegible       string `json:"fecha_actualizacion_legible,omitempty"`
	Fuente             string `json:"fuente"`
	Descripcion        string `json:"descripcion"`
}

// MarketDocument is the persisted output of the JSON category pipeline.
type MarketDocument struct {
	Metadata   Metadata                   `json:"metadata"`
	Categorias map[string]*CategoryRecord `json:"categorias"`
}

// DashboardSnapshot is the terminal artifact of the HTML pipeline: one
// normalized value per canonical key, plus run metadata. Values are
// numbers, strings for legitimately textual fields, or the empty-string
// sentinel for fields no strategy resolved.
type DashboardSnapshot struct {
	Values          map[string]any
	ReportTimestamp string
	SourceURL       string
}

// DashboardDocument is the persisted output of the HTML pipeline.
type DashboardDocument struct {
	Metadata  Metadata       `json:"metadata"`
	Dashboard map[string]any `json:"dashboard"`
}
