package scraper

import (
	"time"

	"github.com/agrodatos/mag-scraper/extractor"
	"github.com/agrodatos/mag-scraper/models"
)

// reportZone is the source site's local time (UTC-3, no DST).
var reportZone = time.FixedZone("-03", -3*60*60)

// unresolvedSentinel is the placeholder persisted for fields no strategy
// resolved, keeping the output shape complete.
const unresolvedSentinel = ""

const sourceDescription = "Datos diarios del Mercado Agroganadero de Argentina"

// AssembleSnapshot merges the extracted field set with run metadata. Pure:
// every configured key appears in the output, unresolved ones carry the
// sentinel, and the report timestamp is now rendered in the site's zone.
func AssembleSnapshot(fields map[string]extractor.Field, specs []extractor.FieldSpec, sourceURL string, now time.Time) *models.DashboardSnapshot {
	values := make(map[string]any, len(specs))
	for _, spec := range specs {
		field := fields[spec.Key]
		if field.MatchedBy == "" || field.Value == nil {
			values[spec.Key] = unresolvedSentinel
			continue
		}
		values[spec.Key] = field.Value
	}

	return &models.DashboardSnapshot{
		Values:          values,
		ReportTimestamp: now.In(reportZone).Format("2006-01-02 15:04:05"),
		SourceURL:       sourceURL,
	}
}

// BuildDashboardDocument wraps a snapshot into the persisted shape.
func BuildDashboardDocument(snap *models.DashboardSnapshot, now time.Time) *models.DashboardDocument {
	return &models.DashboardDocument{
		Metadata:  buildMetadata(snap.SourceURL, now, true),
		Dashboard: snap.Values,
	}
}

func buildMetadata(source string, now time.Time, legible bool) models.Metadata {
	local := now.In(reportZone)
	meta := models.Metadata{
		FechaActualizacion: local.Format(time.RFC3339),
		Fuente:             source,
		Descripcion:        sourceDescription,
	}
	if legible {
		meta.FechaLegible = local.Format("02/01/2006 15:04:05")
	}
	return meta
}
