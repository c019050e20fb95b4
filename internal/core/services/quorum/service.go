package quorum

import (
	"context"

	"gitlab.com/ccsd.net/internal/domain"
)

// IQuorumService evaluates cluster quorum from the membership store
type IQuorumService interface {
	// Self returns this daemon's own member record
	Self() *domain.Member

	// RegisterSelf announces this daemon to the membership store
	RegisterSelf(ctx context.Context) error

	// Heartbeat refreshes this daemon's liveness
	Heartbeat(ctx context.Context) error

	// Leave removes this daemon from the membership store
	Leave(ctx context.Context) error

	// Status evaluates quorum now
	Status(ctx context.Context) (*domain.QuorumStatus, error)

	// IsQuorate is a shortcut for Status().Quorate
	IsQuorate(ctx context.Context) (bool, error)

	// WaitQuorate blocks until the cluster is quorate or ctx is done
	WaitQuorate(ctx context.Context) error

	// Peers returns the live members other than self
	Peers(ctx context.Context) ([]*domain.Member, error)
}
