package quorum

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitlab.com/ccsd.net/internal/adapter/logging"
	"gitlab.com/ccsd.net/internal/adapter/memory"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestQuorum(t *testing.T, repo *memory.MemberRepository, expected int) *QuorumService {
	t.Helper()
	svc := NewQuorumService(
		domain.Member{ID: "n1", Addr: "127.0.0.1:1", Votes: 1},
		repo,
		&config.QuorumConfig{ExpectedVotes: expected, MemberTimeout: 30 * time.Second, PollInterval: 10 * time.Millisecond},
		logging.NewNopLogger(),
	)
	svc.now = func() time.Time { return base }
	return svc
}

func register(t *testing.T, repo *memory.MemberRepository, id string, votes int, at time.Time) {
	t.Helper()
	if err := repo.Register(context.Background(), &domain.Member{ID: id, Addr: id + ":1", Votes: votes, LastHeartbeat: at}); err != nil {
		t.Fatal(err)
	}
}

func TestSingleNodeIsQuorate(t *testing.T) {
	svc := newTestQuorum(t, memory.NewMemberRepository(), 0)

	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.Quorate || status.LiveVotes != 1 || status.Needed != 1 {
		t.Fatalf("status = %+v", status)
	}
}

func TestQuorumCountsLiveVotes(t *testing.T) {
	cases := []struct {
		name     string
		peers    map[string]time.Time
		expected int
		quorate  bool
		live     int
		needed   int
	}{
		{"all live", map[string]time.Time{"n2": base, "n3": base}, 0, true, 3, 2},
		{"one stale", map[string]time.Time{"n2": base, "n3": base.Add(-time.Minute)}, 0, true, 2, 2},
		{"both stale", map[string]time.Time{"n2": base.Add(-time.Minute), "n3": base.Add(-time.Minute)}, 0, false, 1, 2},
		{"expected overrides", map[string]time.Time{"n2": base}, 5, false, 2, 3},
		{"boundary is live", map[string]time.Time{"n2": base.Add(-30 * time.Second)}, 2, true, 2, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			repo := memory.NewMemberRepository()
			for id, at := range c.peers {
				register(t, repo, id, 1, at)
			}
			svc := newTestQuorum(t, repo, c.expected)

			status, err := svc.Status(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if status.Quorate != c.quorate || status.LiveVotes != c.live || status.Needed != c.needed {
				t.Fatalf("status = quorate %v live %d needed %d; want %v %d %d",
					status.Quorate, status.LiveVotes, status.Needed, c.quorate, c.live, c.needed)
			}
		})
	}
}

func TestWeightedVotes(t *testing.T) {
	repo := memory.NewMemberRepository()
	register(t, repo, "n2", 3, base.Add(-time.Hour))
	svc := newTestQuorum(t, repo, 0)

	status, _ := svc.Status(context.Background())
	if status.ExpectedVotes != 4 || status.Needed != 3 || status.Quorate {
		t.Fatalf("status = %+v", status)
	}
}

func TestPeersExcludesSelfAndDead(t *testing.T) {
	repo := memory.NewMemberRepository()
	register(t, repo, "n2", 1, base)
	register(t, repo, "n3", 1, base.Add(-time.Hour))
	svc := newTestQuorum(t, repo, 0)
	if err := svc.RegisterSelf(context.Background()); err != nil {
		t.Fatal(err)
	}

	peers, err := svc.Peers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 || peers[0].ID != "n2" {
		t.Fatalf("peers = %+v", peers)
	}
}

func TestWaitQuorateTimesOut(t *testing.T) {
	svc := newTestQuorum(t, memory.NewMemberRepository(), 3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.WaitQuorate(ctx); !errors.Is(err, errs.Timeout) {
		t.Fatalf("err = %v, want Timeout", err)
	}
}

func TestWaitQuorateReturnsOnceQuorate(t *testing.T) {
	repo := memory.NewMemberRepository()
	svc := newTestQuorum(t, repo, 2)

	go func() {
		time.Sleep(30 * time.Millisecond)
		repo.Register(context.Background(), &domain.Member{ID: "n2", Votes: 1, LastHeartbeat: base})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.WaitQuorate(ctx); err != nil {
		t.Fatalf("WaitQuorate: %v", err)
	}
}

func TestLeave(t *testing.T) {
	repo := memory.NewMemberRepository()
	svc := newTestQuorum(t, repo, 0)
	ctx := context.Background()

	svc.RegisterSelf(ctx)
	if err := svc.Heartbeat(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.Leave(ctx); err != nil {
		t.Fatal(err)
	}
	members, _ := repo.ListMembers(ctx)
	if len(members) != 0 {
		t.Fatalf("members after leave = %+v", members)
	}
	if err := svc.Heartbeat(ctx); err == nil {
		t.Fatal("heartbeat after leave succeeded")
	}
}
