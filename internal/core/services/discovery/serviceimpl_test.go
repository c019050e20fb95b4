package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/adapter/logging"
	"gitlab.com/ccsd.net/internal/adapter/memory"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/domain"
)

// docPeers answers Fetch with a fixed document per address
type docPeers map[string]*domain.Document

func (p docPeers) Notice(context.Context, string, uuid.UUID, *domain.Document) error { return nil }
func (p docPeers) Commit(context.Context, string, uuid.UUID) error                   { return nil }
func (p docPeers) Fetch(ctx context.Context, addr string, fromQuorate bool) (*domain.Document, error) {
	if !fromQuorate {
		return nil, errors.New("discovery must ask for quorate answers")
	}
	doc, ok := p[addr]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return doc, nil
}

func version(t *testing.T, v int64) *domain.Document {
	t.Helper()
	d, err := domain.NewDocument(v, []domain.Entry{{Path: "/v", Value: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newDiscovery(t *testing.T, local int64, peers docPeers, ids ...string) (*DiscoveryService, *configsvc.ConfigService) {
	t.Helper()
	logger := logging.NewNopLogger()
	ctx := context.Background()

	cfg := configsvc.NewConfigService(memory.NewConfigRepository(), "", logger)
	if local > 0 {
		if err := cfg.Commit(ctx, version(t, local), uuid.New()); err != nil {
			t.Fatal(err)
		}
	}

	members := memory.NewMemberRepository()
	for _, id := range ids {
		members.Register(ctx, &domain.Member{ID: id, Addr: id, Votes: 1, LastHeartbeat: time.Now()})
	}
	q := quorum.NewQuorumService(domain.Member{ID: "self", Addr: "self", Votes: 1}, members,
		&config.QuorumConfig{MemberTimeout: time.Minute}, logger)

	return NewDiscoveryService(cfg, q, peers, time.Second, logger), cfg
}

func TestDiscoverAdoptsNewest(t *testing.T) {
	peers := docPeers{"a": version(t, 3), "b": version(t, 5)}
	svc, cfg := newDiscovery(t, 2, peers, "a", "b", "c")

	replaced, err := svc.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !replaced || cfg.Current().Version != 5 {
		t.Fatalf("replaced = %v, version = %d", replaced, cfg.Current().Version)
	}
}

func TestDiscoverKeepsNewerLocal(t *testing.T) {
	peers := docPeers{"a": version(t, 3)}
	svc, cfg := newDiscovery(t, 4, peers, "a")

	replaced, err := svc.Discover(context.Background())
	if err != nil || replaced {
		t.Fatalf("Discover = %v, %v", replaced, err)
	}
	if cfg.Current().Version != 4 {
		t.Fatalf("version = %d", cfg.Current().Version)
	}
}

func TestDiscoverWithoutPeers(t *testing.T) {
	svc, _ := newDiscovery(t, 1, docPeers{})
	replaced, err := svc.Discover(context.Background())
	if err != nil || replaced {
		t.Fatalf("Discover = %v, %v", replaced, err)
	}
}
