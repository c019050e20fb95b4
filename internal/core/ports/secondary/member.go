package secondary

import (
	"context"

	"gitlab.com/ccsd.net/internal/domain"
)

type MemberRepository interface {
	// Register announces a member; it stays registered while it keeps heartbeating
	Register(ctx context.Context, member *domain.Member) error

	// Heartbeat refreshes a member's liveness
	Heartbeat(ctx context.Context, memberID string) error

	// Deregister removes a member immediately
	Deregister(ctx context.Context, memberID string) error

	// ListMembers returns every registered member
	ListMembers(ctx context.Context) ([]*domain.Member, error)
}
