package configsvc

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

// IConfigService holds the committed configuration document
type IConfigService interface {
	// Current returns the committed document
	Current() *domain.Document

	// Load restores the newest stored document, seeding the store when it is empty
	Load(ctx context.Context) error

	// Commit persists doc and makes it current; versions never go backwards
	Commit(ctx context.Context, doc *domain.Document, txnID uuid.UUID) error

	// History lists recently committed versions, newest first
	History(ctx context.Context, limit int) ([]*domain.ConfigVersion, error)
}
