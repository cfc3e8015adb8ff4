package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for
// PostgreSQL. These enable efficient search over discovered content;
// Ent's schema DSL cannot express them.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_content_sources_text_gin
		ON content_sources USING gin(to_tsvector('english', title || ' ' || COALESCE(description, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create content_sources GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_payload_gin
		ON audit_events USING gin(payload)`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events payload GIN index: %w", err)
	}

	return nil
}
