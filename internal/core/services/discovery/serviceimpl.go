package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ IDiscoveryService = &DiscoveryService{}

// DiscoveryService implements IDiscoveryService with BROADCAST|FROM_QUORATE
type DiscoveryService struct {
	configSvc configsvc.IConfigService
	quorumSvc quorum.IQuorumService
	peers     secondary.PeerTransport
	timeout   time.Duration
	logger    primary.Logger
}

func NewDiscoveryService(
	configSvc configsvc.IConfigService,
	quorumSvc quorum.IQuorumService,
	peers secondary.PeerTransport,
	timeout time.Duration,
	logger primary.Logger,
) *DiscoveryService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DiscoveryService{
		configSvc: configSvc,
		quorumSvc: quorumSvc,
		peers:     peers,
		timeout:   timeout,
		logger:    logger,
	}
}

func (s *DiscoveryService) Discover(ctx context.Context) (bool, error) {
	members, err := s.quorumSvc.Peers(ctx)
	if err != nil {
		return false, err
	}
	if len(members) == 0 {
		s.logger.Info("No peers to discover configuration from")
		return false, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		newest *domain.Document
		source string
		wg     sync.WaitGroup
	)
	for _, m := range members {
		wg.Add(1)
		go func(m *domain.Member) {
			defer wg.Done()
			doc, err := s.peers.Fetch(fetchCtx, m.Addr, true)
			if err != nil {
				s.logger.Warn("Peer broadcast failed", "memberID", m.ID, "addr", m.Addr, "error", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if newest == nil || doc.Version > newest.Version {
				newest = doc
				source = m.ID
			}
		}(m)
	}
	wg.Wait()

	current := s.configSvc.Current()
	if newest == nil || newest.Version <= current.Version {
		s.logger.Info("Local configuration is current", "version", current.Version)
		return false, nil
	}

	if err := s.configSvc.Commit(ctx, newest, uuid.Nil); err != nil {
		return false, err
	}
	s.logger.Info("Adopted newer configuration", "version", newest.Version, "from", source)
	return true, nil
}
