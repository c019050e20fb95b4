package query

import (
	"context"

	"gitlab.com/ccsd.net/internal/domain"
)

// IQueryService serves the descriptor-based request types
type IQueryService interface {
	// Connect opens a descriptor. force opens without quorum; blocking waits for it.
	Connect(ctx context.Context, force, blocking bool) (int32, error)

	// Disconnect closes a descriptor
	Disconnect(ctx context.Context, desc int32) error

	// Get returns the value of the first entry matching query
	Get(ctx context.Context, desc int32, query string) (string, error)

	// GetList returns the next entry matching query on successive calls
	GetList(ctx context.Context, desc int32, query string) (string, error)

	// Set writes a value and rolls the new document out to the cluster
	Set(ctx context.Context, desc int32, path, value string) (int64, error)

	// GetState reports the session's working path and list cursor
	GetState(ctx context.Context, desc int32) (*domain.SessionState, error)

	// SetState changes the working path and optionally resets the list cursor
	SetState(ctx context.Context, desc int32, path string, resetQuery bool) error
}
