package schedulerengine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/adapter/logging"
	"gitlab.com/ccsd.net/internal/adapter/memory"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/domain"
)

type countingDiscovery struct{ calls atomic.Int32 }

func (d *countingDiscovery) Discover(ctx context.Context) (bool, error) {
	d.calls.Add(1)
	return false, nil
}

type stubUpdate struct{ expired atomic.Int32 }

func (s *stubUpdate) Start(context.Context, *domain.Document) (int64, error)    { return 0, nil }
func (s *stubUpdate) Notice(context.Context, uuid.UUID, *domain.Document) error { return nil }
func (s *stubUpdate) Commit(context.Context, uuid.UUID) error                   { return nil }
func (s *stubUpdate) Pending() *domain.PendingUpdate                            { return nil }
func (s *stubUpdate) ExpirePending(time.Time) bool {
	s.expired.Add(1)
	return false
}

func newEngine(t *testing.T, expectedVotes int) (*SchedulerEngine, *memory.MemberRepository, *session.SessionService, *countingDiscovery, *stubUpdate) {
	t.Helper()
	logger := logging.NewNopLogger()
	members := memory.NewMemberRepository()
	q := quorum.NewQuorumService(domain.Member{ID: "n1", Votes: 1}, members,
		&config.QuorumConfig{ExpectedVotes: expectedVotes, MemberTimeout: time.Minute}, logger)
	if err := q.RegisterSelf(context.Background()); err != nil {
		t.Fatal(err)
	}
	sessions := session.NewSessionService(&config.SessionConfig{MaxSessions: 4, IdleTimeout: time.Minute}, logger)
	disc := &countingDiscovery{}
	upd := &stubUpdate{}

	engine := NewSchedulerEngine(&config.EngineConfig{HeartbeatInterval: 10 * time.Millisecond, ReapInterval: 10 * time.Millisecond},
		q, sessions, upd, disc, logger)
	return engine, members, sessions, disc, upd
}

func TestHeartbeatDiscoversOnQuorumGain(t *testing.T) {
	engine, members, _, disc, _ := newEngine(t, 2)
	ctx := context.Background()

	engine.Heartbeat(ctx)
	if disc.calls.Load() != 0 {
		t.Fatal("discovered without quorum")
	}

	members.Register(ctx, &domain.Member{ID: "n2", Votes: 1, LastHeartbeat: time.Now()})
	engine.Heartbeat(ctx)
	engine.Heartbeat(ctx)
	if got := disc.calls.Load(); got != 1 {
		t.Fatalf("discover calls = %d, want 1", got)
	}
}

func TestHousekeepReapsIdleSessions(t *testing.T) {
	engine, _, sessions, _, upd := newEngine(t, 0)
	sessions.Open(false)

	engine.now = func() time.Time { return time.Now().Add(time.Hour) }
	engine.Housekeep()

	if sessions.Count() != 0 {
		t.Fatalf("Count = %d after reap", sessions.Count())
	}
	if upd.expired.Load() != 1 {
		t.Fatal("pending update not checked")
	}
}

func TestStartStopsWithContext(t *testing.T) {
	engine, _, _, disc, upd := newEngine(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for upd.expired.Load() == 0 || disc.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("loops did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}
