package memberport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.MemberRepository = (*MemberRepository)(nil)

const leaseTTLSeconds = 10

// MemberRepository keeps members under an etcd prefix. Registration is tied to
// a lease kept alive in the background, so a crashed daemon disappears on its own.
type MemberRepository struct {
	cli    *clientv3.Client
	prefix string
	logger primary.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
	stops  map[string]context.CancelFunc
}

// NewClient dials etcd
func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
}

func NewMemberRepository(cli *clientv3.Client, prefix string, logger primary.Logger) *MemberRepository {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MemberRepository{
		cli:    cli,
		prefix: prefix,
		logger: logger,
		leases: make(map[string]clientv3.LeaseID),
		stops:  make(map[string]context.CancelFunc),
	}
}

func (r *MemberRepository) key(id string) string {
	return r.prefix + id
}

// Register puts the member under a fresh lease and keeps the lease alive
func (r *MemberRepository) Register(ctx context.Context, member *domain.Member) error {
	lease, err := r.cli.Grant(ctx, leaseTTLSeconds)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	if member.LastHeartbeat.IsZero() {
		member.LastHeartbeat = time.Now()
	}
	if err := r.put(ctx, member, lease.ID); err != nil {
		return err
	}

	keepCtx, stop := context.WithCancel(context.Background())
	ch, err := r.cli.KeepAlive(keepCtx, lease.ID)
	if err != nil {
		stop()
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}
	go func() {
		// drain keepalive responses until the lease is revoked or stopped
		for range ch {
		}
		r.logger.Debug("Lease keepalive ended", "memberID", member.ID)
	}()

	r.mu.Lock()
	if prev, ok := r.stops[member.ID]; ok {
		prev()
	}
	r.leases[member.ID] = lease.ID
	r.stops[member.ID] = stop
	r.mu.Unlock()
	return nil
}

func (r *MemberRepository) put(ctx context.Context, member *domain.Member, lease clientv3.LeaseID) error {
	memberJSON, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member info: %w", err)
	}
	if _, err := r.cli.Put(ctx, r.key(member.ID), string(memberJSON), clientv3.WithLease(lease)); err != nil {
		r.logger.Error("Failed to put member", "memberID", member.ID, "error", err)
		return fmt.Errorf("failed to put member: %w", err)
	}
	return nil
}

// Heartbeat rewrites the member's heartbeat time under its existing lease
func (r *MemberRepository) Heartbeat(ctx context.Context, memberID string) error {
	r.mu.Lock()
	lease, ok := r.leases[memberID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("member not registered here: %s", memberID)
	}

	resp, err := r.cli.Get(ctx, r.key(memberID))
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return fmt.Errorf("member not found: %s", memberID)
	}

	var member domain.Member
	if err := json.Unmarshal(resp.Kvs[0].Value, &member); err != nil {
		return fmt.Errorf("failed to unmarshal member info: %w", err)
	}
	member.LastHeartbeat = time.Now()
	return r.put(ctx, &member, lease)
}

// Deregister revokes the member's lease, which deletes its key
func (r *MemberRepository) Deregister(ctx context.Context, memberID string) error {
	r.mu.Lock()
	lease, ok := r.leases[memberID]
	stop := r.stops[memberID]
	delete(r.leases, memberID)
	delete(r.stops, memberID)
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	if ok {
		if _, err := r.cli.Revoke(ctx, lease); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
		return nil
	}
	if _, err := r.cli.Delete(ctx, r.key(memberID)); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// ListMembers reads every member under the prefix
func (r *MemberRepository) ListMembers(ctx context.Context) ([]*domain.Member, error) {
	resp, err := r.cli.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]*domain.Member, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var member domain.Member
		if err := json.Unmarshal(kv.Value, &member); err != nil {
			r.logger.Warn("Skipping unreadable member", "key", string(kv.Key), "error", err)
			continue
		}
		members = append(members, &member)
	}
	return members, nil
}
