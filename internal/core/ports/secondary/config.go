package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

type ConfigRepository interface {
	// LoadLatest returns the newest committed document, or nil when none is stored
	LoadLatest(ctx context.Context) (*domain.Document, error)

	// SaveVersion stores a committed document under its version
	SaveVersion(ctx context.Context, doc *domain.Document, txnID uuid.UUID) error

	// ListVersions returns the most recent committed versions, newest first
	ListVersions(ctx context.Context, limit int) ([]*domain.ConfigVersion, error)
}
