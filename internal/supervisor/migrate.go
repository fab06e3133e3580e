package supervisor

import (
	"go.uber.org/zap"

	"constraint-engine/internal/models"
)

// currentAnalyticsVersion is the schema generation this build reads and
// writes.
const currentAnalyticsVersion = "1.0.0"

// A schemaMigration lifts an analytics document one version forward.
type schemaMigration struct {
	from  string
	to    string
	apply func(doc *models.AnalyticsDocument)
}

// schemaMigrations runs in order on load. Empty while the current schema is
// the first one; each new generation appends a step here so older files are
// backfilled transparently instead of failing the load.
var schemaMigrations []schemaMigration

// migrate walks the migration chain until the document reaches the current
// version. Documents at a version with no chain entry are used as-is.
func (sv *Supervisor) migrate(doc *models.AnalyticsDocument) *models.AnalyticsDocument {
	for doc.Version != currentAnalyticsVersion {
		step, ok := nextMigration(doc.Version)
		if !ok {
			sv.logger.Warn("Unknown analytics schema version, using as-is",
				zap.String("version", doc.Version))
			return doc
		}
		step.apply(doc)
		doc.Version = step.to
		sv.logger.Info("Migrated analytics schema",
			zap.String("from", step.from),
			zap.String("to", step.to))
	}
	return doc
}

func nextMigration(version string) (schemaMigration, bool) {
	for _, m := range schemaMigrations {
		if m.from == version {
			return m, true
		}
	}
	return schemaMigration{}, false
}
