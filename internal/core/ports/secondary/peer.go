package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

// PeerTransport carries daemon-to-daemon requests
type PeerTransport interface {
	// Notice sends UPDATE|NOTICE and waits for the NOTICE_ACK
	Notice(ctx context.Context, addr string, txnID uuid.UUID, doc *domain.Document) error

	// Commit sends UPDATE|COMMIT and waits for the COMMIT_ACK
	Commit(ctx context.Context, addr string, txnID uuid.UUID) error

	// Fetch broadcasts for the peer's current document
	Fetch(ctx context.Context, addr string, fromQuorate bool) (*domain.Document, error)
}
