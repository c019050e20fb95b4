package quorum

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/telemetry"
)

var _ IQuorumService = &QuorumService{}

// QuorumService implements IQuorumService
type QuorumService struct {
	self          domain.Member
	memberRepo    secondary.MemberRepository
	expectedVotes int
	memberTimeout time.Duration
	pollInterval  time.Duration
	logger        primary.Logger
	now           func() time.Time
}

// NewQuorumService creates a quorum evaluator for the daemon described by self
func NewQuorumService(self domain.Member, memberRepo secondary.MemberRepository, cfg *config.QuorumConfig, logger primary.Logger) *QuorumService {
	if self.Votes <= 0 {
		self.Votes = 1
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &QuorumService{
		self:          self,
		memberRepo:    memberRepo,
		expectedVotes: cfg.ExpectedVotes,
		memberTimeout: cfg.MemberTimeout,
		pollInterval:  poll,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *QuorumService) Self() *domain.Member {
	self := s.self
	return &self
}

func (s *QuorumService) RegisterSelf(ctx context.Context) error {
	self := s.self
	self.LastHeartbeat = s.now()
	if err := s.memberRepo.Register(ctx, &self); err != nil {
		s.logger.Error("Failed to register member", "memberID", self.ID, "error", err)
		return fmt.Errorf("failed to register member: %w", err)
	}
	s.logger.Info("Member registered", "memberID", self.ID, "addr", self.Addr, "votes", self.Votes)
	return nil
}

func (s *QuorumService) Heartbeat(ctx context.Context) error {
	if err := s.memberRepo.Heartbeat(ctx, s.self.ID); err != nil {
		s.logger.Error("Failed to send heartbeat", "memberID", s.self.ID, "error", err)
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	return nil
}

func (s *QuorumService) Leave(ctx context.Context) error {
	if err := s.memberRepo.Deregister(ctx, s.self.ID); err != nil {
		return fmt.Errorf("failed to deregister member: %w", err)
	}
	s.logger.Info("Member left", "memberID", s.self.ID)
	return nil
}

// Status evaluates quorum. Self always counts as live; other members are live
// while their last heartbeat is within the member timeout.
func (s *QuorumService) Status(ctx context.Context) (*domain.QuorumStatus, error) {
	members, err := s.memberRepo.ListMembers(ctx)
	if err != nil {
		s.logger.Error("Failed to list members", "error", err)
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	if !lo.ContainsBy(members, func(m *domain.Member) bool { return m.ID == s.self.ID }) {
		self := s.self
		self.LastHeartbeat = s.now()
		members = append(members, &self)
	}

	cutoff := s.now().Add(-s.memberTimeout)
	for _, m := range members {
		if m.Votes <= 0 {
			m.Votes = 1
		}
		m.IsLive = m.ID == s.self.ID || !m.LastHeartbeat.Before(cutoff)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	liveVotes := lo.SumBy(lo.Filter(members, func(m *domain.Member, _ int) bool { return m.IsLive }),
		func(m *domain.Member) int { return m.Votes })

	expected := s.expectedVotes
	if expected <= 0 {
		expected = lo.SumBy(members, func(m *domain.Member) int { return m.Votes })
	}
	needed := expected/2 + 1

	status := &domain.QuorumStatus{
		Quorate:       liveVotes >= needed,
		LiveVotes:     liveVotes,
		ExpectedVotes: expected,
		Needed:        needed,
		Members:       members,
	}
	telemetry.SetQuorate(status.Quorate)
	return status, nil
}

func (s *QuorumService) IsQuorate(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Quorate, nil
}

// WaitQuorate polls the membership store until the cluster is quorate
func (s *QuorumService) WaitQuorate(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		quorate, err := s.IsQuorate(ctx)
		if err == nil && quorate {
			return nil
		}
		if err != nil {
			s.logger.Warn("Quorum check failed while waiting", "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for quorum: %w: %v", errs.Timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Peers returns the live members other than self
func (s *QuorumService) Peers(ctx context.Context) ([]*domain.Member, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(status.Members, func(m *domain.Member, _ int) bool {
		return m.IsLive && m.ID != s.self.ID
	}), nil
}
