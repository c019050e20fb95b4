package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/discovery"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/telemetry"
)

// SchedulerEngine runs the daemon's periodic housekeeping
type SchedulerEngine struct {
	EngineCfg      *config.EngineConfig
	quorumService  quorum.IQuorumService
	sessionService session.ISessionService
	updateService  update.IUpdateService
	discovery      discovery.IDiscoveryService
	logger         primary.Logger

	wasQuorate bool
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewSchedulerEngine(
	engineCfg *config.EngineConfig,
	quorumService quorum.IQuorumService,
	sessionService session.ISessionService,
	updateService update.IUpdateService,
	discoveryService discovery.IDiscoveryService,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		EngineCfg:      engineCfg,
		quorumService:  quorumService,
		sessionService: sessionService,
		updateService:  updateService,
		discovery:      discoveryService,
		logger:         logger,
		now:            time.Now,
	}
}

// Start launches the heartbeat and housekeeping loops; they stop with ctx
func (s *SchedulerEngine) Start(ctx context.Context) {
	s.wg.Add(2)

	heartbeat := time.NewTicker(s.EngineCfg.HeartbeatInterval)
	go func() {
		defer s.wg.Done()
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				s.Heartbeat(ctx)
			}
		}
	}()

	reap := time.NewTicker(s.EngineCfg.ReapInterval)
	go func() {
		defer s.wg.Done()
		defer reap.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-reap.C:
				s.Housekeep()
			}
		}
	}()
}

// Wait blocks until the loops started by Start have returned
func (s *SchedulerEngine) Wait() {
	s.wg.Wait()
}

// Heartbeat refreshes membership and re-checks quorum. Regaining quorum
// triggers a discovery round so a node that was cut off catches up.
func (s *SchedulerEngine) Heartbeat(ctx context.Context) {
	if err := s.quorumService.Heartbeat(ctx); err != nil {
		s.logger.Error("Failed to send heartbeat", "error", err)
	}

	quorate, err := s.quorumService.IsQuorate(ctx)
	if err != nil {
		s.logger.Error("Failed to evaluate quorum", "error", err)
		return
	}
	telemetry.SetQuorate(quorate)

	regained := quorate && !s.wasQuorate
	if quorate != s.wasQuorate {
		s.logger.Info("Quorum changed", "quorate", quorate)
	}
	s.wasQuorate = quorate

	if regained && s.discovery != nil {
		if _, err := s.discovery.Discover(ctx); err != nil {
			s.logger.Error("Discovery after regaining quorum failed", "error", err)
		}
	}
}

// Housekeep closes idle sessions and drops a stale pending update
func (s *SchedulerEngine) Housekeep() {
	now := s.now()
	if reaped := s.sessionService.Reap(now); len(reaped) > 0 {
		s.logger.Info("Reaped idle sessions", "count", len(reaped), "descs", reaped)
	}
	if s.updateService.ExpirePending(now) {
		s.logger.Warn("Dropped expired pending update")
	}
}
