package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.MemberRepository = (*MemberRepository)(nil)

// MemberRepository is an in-process membership table. Members listed as static
// peers are treated as permanently live.
type MemberRepository struct {
	mu      sync.RWMutex
	members map[string]*domain.Member
	static  map[string]bool
	now     func() time.Time
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		members: make(map[string]*domain.Member),
		static:  make(map[string]bool),
		now:     time.Now,
	}
}

// NewStaticMemberRepository builds a table from "id=host:port" peer entries
func NewStaticMemberRepository(peers []string) (*MemberRepository, error) {
	r := NewMemberRepository()
	for _, entry := range peers {
		id, addr, ok := strings.Cut(entry, "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid peer %q, want id=host:port", entry)
		}
		r.members[id] = &domain.Member{ID: id, Addr: addr, Votes: 1}
		r.static[id] = true
	}
	return r, nil
}

func (r *MemberRepository) Register(ctx context.Context, member *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *member
	if cp.LastHeartbeat.IsZero() {
		cp.LastHeartbeat = r.now()
	}
	r.members[member.ID] = &cp
	return nil
}

func (r *MemberRepository) Heartbeat(ctx context.Context, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[memberID]
	if !ok {
		return fmt.Errorf("member not found: %s", memberID)
	}
	m.LastHeartbeat = r.now()
	return nil
}

func (r *MemberRepository) Deregister(ctx context.Context, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, memberID)
	delete(r.static, memberID)
	return nil
}

func (r *MemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]*domain.Member, 0, len(r.members))
	for id, m := range r.members {
		cp := *m
		if r.static[id] {
			cp.LastHeartbeat = now
		}
		out = append(out, &cp)
	}
	return out, nil
}
