// package configrepository stores committed configuration versions in PostgreSQL
package configrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.ConfigRepository = (*ConfigRepository)(nil)

// ConfigRepository implements the ConfigRepository interface with PostgreSQL
type ConfigRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

// New creates a new PostgreSQL config repository
func New(db *sqlx.DB, logger primary.Logger, schema string) *ConfigRepository {
	if schema == "" {
		schema = "public"
	}
	return &ConfigRepository{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

func (r *ConfigRepository) table() string {
	return fmt.Sprintf("%s.config_versions", r.schema)
}

// Migrate creates the history table when it does not exist yet
func (r *ConfigRepository) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version      BIGINT PRIMARY KEY,
			txn_id       UUID NOT NULL,
			document     JSONB NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, r.table())

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.Error("Failed to create config_versions table", "error", err)
		return fmt.Errorf("failed to migrate config_versions: %w", err)
	}
	return nil
}

// LoadLatest returns the newest committed document
func (r *ConfigRepository) LoadLatest(ctx context.Context) (*domain.Document, error) {
	query := fmt.Sprintf(`
		SELECT version, txn_id, document, committed_at
		FROM %s
		ORDER BY version DESC
		LIMIT 1
	`, r.table())

	var row domain.ConfigVersion
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to load latest config", "error", err)
		return nil, fmt.Errorf("failed to load latest config: %w", err)
	}

	doc, err := domain.ParseDocument(row.Document)
	if err != nil {
		return nil, fmt.Errorf("stored config version %d is corrupt: %w", row.Version, err)
	}
	return doc, nil
}

// SaveVersion saves a committed document. Saving the same version twice is a no-op.
func (r *ConfigRepository) SaveVersion(ctx context.Context, doc *domain.Document, txnID uuid.UUID) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		r.logger.Error("Failed to marshal document", "error", err)
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (version, txn_id, document, committed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version) DO NOTHING
	`, r.table())

	_, err = r.db.ExecContext(ctx, query, doc.Version, txnID, docJSON, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to save config version", "version", doc.Version, "error", err)
		return fmt.Errorf("failed to save config version: %w", err)
	}
	return nil
}

// ListVersions returns up to limit versions, newest first
func (r *ConfigRepository) ListVersions(ctx context.Context, limit int) ([]*domain.ConfigVersion, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT version, txn_id, document, committed_at
		FROM %s
		ORDER BY version DESC
		LIMIT $1
	`, r.table())

	var rows []*domain.ConfigVersion
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		r.logger.Error("Failed to list config versions", "error", err)
		return nil, fmt.Errorf("failed to list config versions: %w", err)
	}
	return rows, nil
}
