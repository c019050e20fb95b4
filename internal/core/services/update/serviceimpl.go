package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/telemetry"
)

var _ IUpdateService = &UpdateService{}

const (
	outcomeOK    = "ok"
	outcomeError = "error"
	outcomeAbort = "abort"

	defaultPhaseTimeout = 10 * time.Second
)

// UpdateService implements the two-phase rollout: NOTICE to every live peer,
// COMMIT once acknowledgements reach quorum.
type UpdateService struct {
	configSvc configsvc.IConfigService
	quorumSvc quorum.IQuorumService
	peers     secondary.PeerTransport
	logger    primary.Logger

	phaseTimeout   time.Duration
	pendingTimeout time.Duration
	now            func() time.Time

	// coordinating is held for the whole of Start
	coordinating sync.Mutex

	mu      sync.Mutex
	pending *domain.PendingUpdate
}

// NewUpdateService creates the rollout service
func NewUpdateService(
	configSvc configsvc.IConfigService,
	quorumSvc quorum.IQuorumService,
	peers secondary.PeerTransport,
	cfg *config.UpdateConfig,
	logger primary.Logger,
) *UpdateService {
	phaseTimeout := cfg.PhaseTimeout
	if phaseTimeout <= 0 {
		phaseTimeout = defaultPhaseTimeout
	}
	return &UpdateService{
		configSvc:      configSvc,
		quorumSvc:      quorumSvc,
		peers:          peers,
		logger:         logger,
		phaseTimeout:   phaseTimeout,
		pendingTimeout: cfg.PendingTimeout,
		now:            time.Now,
	}
}

// Start coordinates a rollout and returns the committed version
func (s *UpdateService) Start(ctx context.Context, doc *domain.Document) (int64, error) {
	if !s.coordinating.TryLock() {
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeAbort)
		return 0, errs.UpdateInProgress
	}
	defer s.coordinating.Unlock()

	current := s.configSvc.Current()
	if doc.Version <= current.Version {
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeAbort)
		return 0, fmt.Errorf("start update to version %d over %d: %w", doc.Version, current.Version, errs.StaleVersion)
	}

	status, err := s.quorumSvc.Status(ctx)
	if err != nil {
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeError)
		return 0, err
	}
	if !status.Quorate {
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeAbort)
		return 0, fmt.Errorf("start update: %w", errs.NotQuorate)
	}

	self := s.quorumSvc.Self()
	peers := make([]*domain.Member, 0, len(status.Members))
	for _, m := range status.Members {
		if m.IsLive && m.ID != self.ID {
			peers = append(peers, m)
		}
	}

	txnID := uuid.New()
	s.logger.Info("Starting update", "txn", txnID, "version", doc.Version, "peers", len(peers))

	acked := s.notifyPeers(ctx, txnID, doc, peers)

	votes := self.Votes
	for _, m := range peers {
		if acked.Contains(m.ID) {
			votes += m.Votes
		}
	}
	if votes < status.Needed {
		s.logger.Warn("Aborting update, not enough acknowledgements",
			"txn", txnID, "votes", votes, "needed", status.Needed)
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeAbort)
		return 0, fmt.Errorf("update %s got %d of %d votes: %w", txnID, votes, status.Needed, errs.NotQuorate)
	}

	// local commit precedes peer COMMIT; peers never run ahead of the coordinator
	if err := s.configSvc.Commit(ctx, doc, txnID); err != nil {
		telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeError)
		return 0, err
	}

	s.commitPeers(ctx, txnID, peers, acked)

	telemetry.ObservePhase(string(domain.UpdatePhaseStart), outcomeOK)
	s.logger.Info("Update committed", "txn", txnID, "version", doc.Version, "acked", acked.Cardinality())
	return doc.Version, nil
}

// notifyPeers sends NOTICE to every peer in parallel and returns the ids that acknowledged
func (s *UpdateService) notifyPeers(ctx context.Context, txnID uuid.UUID, doc *domain.Document, peers []*domain.Member) mapset.Set[string] {
	acked := mapset.NewSet[string]()

	phaseCtx, cancel := context.WithTimeout(ctx, s.phaseTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, m := range peers {
		wg.Add(1)
		go func(m *domain.Member) {
			defer wg.Done()
			if err := s.peers.Notice(phaseCtx, m.Addr, txnID, doc); err != nil {
				s.logger.Warn("Peer rejected notice", "txn", txnID, "memberID", m.ID, "error", err)
				telemetry.ObservePhase(string(domain.UpdatePhaseNotice), outcomeError)
				return
			}
			telemetry.ObservePhase(string(domain.UpdatePhaseNotice), outcomeOK)
			acked.Add(m.ID)
		}(m)
	}
	wg.Wait()

	return acked
}

// commitPeers sends COMMIT to the peers that acknowledged the notice.
// A peer that misses the commit catches up through discovery.
func (s *UpdateService) commitPeers(ctx context.Context, txnID uuid.UUID, peers []*domain.Member, acked mapset.Set[string]) {
	phaseCtx, cancel := context.WithTimeout(ctx, s.phaseTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, m := range peers {
		if !acked.Contains(m.ID) {
			continue
		}
		wg.Add(1)
		go func(m *domain.Member) {
			defer wg.Done()
			if err := s.peers.Commit(phaseCtx, m.Addr, txnID); err != nil {
				s.logger.Error("Peer failed to commit", "txn", txnID, "memberID", m.ID, "error", err)
				telemetry.ObservePhase(string(domain.UpdatePhaseCommit), outcomeError)
				return
			}
			telemetry.ObservePhase(string(domain.UpdatePhaseCommit), outcomeOK)
		}(m)
	}
	wg.Wait()
}

// Notice stages doc for txnID. A newer notice replaces an older pending one.
func (s *UpdateService) Notice(ctx context.Context, txnID uuid.UUID, doc *domain.Document) error {
	err := s.stage(txnID, doc)
	observePeerPhase(domain.UpdatePhaseNotice, err)
	return err
}

func (s *UpdateService) stage(txnID uuid.UUID, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("notice %s without document: %w", txnID, errs.InvalidRequest)
	}

	current := s.configSvc.Current()
	if doc.Version <= current.Version {
		return fmt.Errorf("notice version %d over %d: %w", doc.Version, current.Version, errs.StaleVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil && !s.expired(s.pending, s.now()) && doc.Version < s.pending.Document.Version {
		return fmt.Errorf("notice version %d below pending %d: %w", doc.Version, s.pending.Document.Version, errs.StaleVersion)
	}

	s.pending = &domain.PendingUpdate{
		TxnID:      txnID,
		Document:   doc,
		ReceivedAt: s.now(),
	}
	s.logger.Info("Update noticed", "txn", txnID, "version", doc.Version)
	return nil
}

// Commit promotes the pending update for txnID
func (s *UpdateService) Commit(ctx context.Context, txnID uuid.UUID) error {
	err := s.promote(ctx, txnID)
	observePeerPhase(domain.UpdatePhaseCommit, err)
	return err
}

func observePeerPhase(phase domain.UpdatePhase, err error) {
	if err != nil {
		telemetry.ObservePhase(string(phase), outcomeError)
		return
	}
	telemetry.ObservePhase(string(phase), outcomeOK)
}

func (s *UpdateService) promote(ctx context.Context, txnID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	if p == nil || p.TxnID != txnID {
		return fmt.Errorf("commit %s: %w", txnID, errs.BadTransaction)
	}
	if s.expired(p, s.now()) {
		s.pending = nil
		return fmt.Errorf("commit %s after pending timeout: %w", txnID, errs.BadTransaction)
	}

	if err := s.configSvc.Commit(ctx, p.Document, txnID); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

func (s *UpdateService) Pending() *domain.PendingUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	cp := *s.pending
	return &cp
}

// ExpirePending drops a staged update that outlived the pending timeout
func (s *UpdateService) ExpirePending(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || !s.expired(s.pending, now) {
		return false
	}
	s.logger.Warn("Dropping expired pending update", "txn", s.pending.TxnID, "version", s.pending.Document.Version)
	s.pending = nil
	return true
}

func (s *UpdateService) expired(p *domain.PendingUpdate, now time.Time) bool {
	return s.pendingTimeout > 0 && now.Sub(p.ReceivedAt) > s.pendingTimeout
}
