package update

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

// IUpdateService runs both sides of the configuration rollout
type IUpdateService interface {
	// Start coordinates a rollout of doc to every live peer and commits it locally
	Start(ctx context.Context, doc *domain.Document) (int64, error)

	// Notice stages doc as the pending update for txnID
	Notice(ctx context.Context, txnID uuid.UUID, doc *domain.Document) error

	// Commit promotes the pending update for txnID
	Commit(ctx context.Context, txnID uuid.UUID) error

	// Pending returns the staged update, if any
	Pending() *domain.PendingUpdate

	// ExpirePending drops a staged update older than the pending timeout
	ExpirePending(now time.Time) bool
}
