package query

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
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
)

type noPeers struct{}

func (noPeers) Notice(context.Context, string, uuid.UUID, *domain.Document) error { return nil }
func (noPeers) Commit(context.Context, string, uuid.UUID) error                   { return nil }
func (noPeers) Fetch(context.Context, string, bool) (*domain.Document, error) {
	return nil, errors.New("no peers")
}

type fixture struct {
	query   *QueryService
	config  *configsvc.ConfigService
	members *memory.MemberRepository
}

// newFixture builds a single daemon holding doc. expectedVotes above 1 makes it inquorate.
func newFixture(t *testing.T, expectedVotes int, kv ...string) *fixture {
	t.Helper()
	logger := logging.NewNopLogger()
	ctx := context.Background()

	cfg := configsvc.NewConfigService(memory.NewConfigRepository(), "", logger)
	var entries []domain.Entry
	for i := 0; i+1 < len(kv); i += 2 {
		entries = append(entries, domain.Entry{Path: kv[i], Value: kv[i+1]})
	}
	doc, err := domain.NewDocument(1, entries)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Commit(ctx, doc, uuid.New()); err != nil {
		t.Fatal(err)
	}

	members := memory.NewMemberRepository()
	q := quorum.NewQuorumService(domain.Member{ID: "n1", Votes: 1}, members,
		&config.QuorumConfig{ExpectedVotes: expectedVotes, MemberTimeout: time.Minute, PollInterval: 10 * time.Millisecond}, logger)
	sessCfg := &config.SessionConfig{MaxSessions: 4, BlockingConnectTimeout: 100 * time.Millisecond}
	sessions := session.NewSessionService(sessCfg, logger)
	upd := update.NewUpdateService(cfg, q, noPeers{}, &config.UpdateConfig{PhaseTimeout: time.Second}, logger)

	return &fixture{
		query:   NewQueryService(sessions, cfg, q, upd, sessCfg, logger),
		config:  cfg,
		members: members,
	}
}

func TestConnectRequiresQuorum(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, 3)
	if _, err := f.query.Connect(ctx, false, false); !errors.Is(err, errs.NotQuorate) {
		t.Fatalf("plain connect: err = %v, want NotQuorate", err)
	}
	if _, err := f.query.Connect(ctx, false, true); !errors.Is(err, errs.Timeout) {
		t.Fatalf("blocking connect: err = %v, want Timeout", err)
	}
	desc, err := f.query.Connect(ctx, true, false)
	if err != nil || desc <= 0 {
		t.Fatalf("forced connect = %d, %v", desc, err)
	}
}

func TestForceWinsOverBlocking(t *testing.T) {
	f := newFixture(t, 3)

	start := time.Now()
	desc, err := f.query.Connect(context.Background(), true, true)
	if err != nil || desc <= 0 {
		t.Fatalf("force+blocking connect = %d, %v", desc, err)
	}
	if took := time.Since(start); took >= 100*time.Millisecond {
		t.Fatalf("force+blocking connect waited %v", took)
	}
}

func TestConnectQuorate(t *testing.T) {
	f := newFixture(t, 0)
	desc, err := f.query.Connect(context.Background(), false, false)
	if err != nil || desc != 1 {
		t.Fatalf("connect = %d, %v", desc, err)
	}
	if err := f.query.Disconnect(context.Background(), desc); err != nil {
		t.Fatal(err)
	}
	if err := f.query.Disconnect(context.Background(), desc); !errors.Is(err, errs.BadDescriptor) {
		t.Fatalf("double disconnect: err = %v", err)
	}
}

func TestBlockingConnectWaits(t *testing.T) {
	f := newFixture(t, 2)
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.members.Register(context.Background(), &domain.Member{ID: "n2", Votes: 1, LastHeartbeat: time.Now()})
	}()

	if _, err := f.query.Connect(context.Background(), false, true); err != nil {
		t.Fatalf("blocking connect: %v", err)
	}
}

func TestGet(t *testing.T) {
	f := newFixture(t, 0,
		"/cluster/name", "alpha",
		"/cluster/nodes/a", "1",
		"/cluster/nodes/b", "2",
	)
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	if v, err := f.query.Get(ctx, desc, "/cluster/name"); err != nil || v != "alpha" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if v, _ := f.query.Get(ctx, desc, "/cluster/nodes/*"); v != "1" {
		t.Fatalf("wildcard Get = %q, want first match", v)
	}
	if _, err := f.query.Get(ctx, desc, "/missing"); !errors.Is(err, errs.NoEntry) {
		t.Fatalf("missing: err = %v", err)
	}
	if _, err := f.query.Get(ctx, 99, "/cluster/name"); !errors.Is(err, errs.BadDescriptor) {
		t.Fatalf("bad desc: err = %v", err)
	}
}

func TestGetListWalk(t *testing.T) {
	f := newFixture(t, 0,
		"/cluster/nodes/a", "1",
		"/cluster/nodes/b", "2",
		"/cluster/nodes/c", "3",
	)
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	var got []string
	for {
		v, err := f.query.GetList(ctx, desc, "/cluster/nodes/*")
		if errors.Is(err, errs.NoEntry) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Fatalf("walk = %v", got)
	}

	// exhausted stays exhausted
	if _, err := f.query.GetList(ctx, desc, "/cluster/nodes/*"); !errors.Is(err, errs.NoEntry) {
		t.Fatalf("after exhaustion: err = %v", err)
	}

	// a different query restarts
	if v, err := f.query.GetList(ctx, desc, "/cluster/nodes/b"); err != nil || v != "2" {
		t.Fatalf("new query = %q, %v", v, err)
	}
}

func TestGetListRestartsOnReset(t *testing.T) {
	f := newFixture(t, 0, "/a/x", "1", "/a/y", "2")
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	f.query.GetList(ctx, desc, "/a/*")
	if err := f.query.SetState(ctx, desc, "/", true); err != nil {
		t.Fatal(err)
	}
	if v, _ := f.query.GetList(ctx, desc, "/a/*"); v != "1" {
		t.Fatalf("after reset got %q, want first entry", v)
	}

	if err := f.query.SetState(ctx, desc, "/", false); err != nil {
		t.Fatal(err)
	}
	if v, _ := f.query.GetList(ctx, desc, "/a/*"); v != "2" {
		t.Fatalf("without reset got %q, want second entry", v)
	}
}

func TestGetListRestartsOnVersionChange(t *testing.T) {
	f := newFixture(t, 0, "/a/x", "1", "/a/y", "2")
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	for _, want := range []string{"1", "2"} {
		if v, err := f.query.GetList(ctx, desc, "/a/*"); err != nil || v != want {
			t.Fatalf("walk = %q, %v; want %q", v, err, want)
		}
	}

	if _, err := f.query.Set(ctx, desc, "/a/z", "3"); err != nil {
		t.Fatal(err)
	}
	if v, err := f.query.GetList(ctx, desc, "/a/*"); err != nil || v != "1" {
		t.Fatalf("after new version got %q, %v; want first entry", v, err)
	}
}

func TestStateAndRelativeQueries(t *testing.T) {
	f := newFixture(t, 0, "/cluster/nodes/a", "1", "/cluster/name", "alpha")
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	if err := f.query.SetState(ctx, desc, "/cluster", false); err != nil {
		t.Fatal(err)
	}
	if v, err := f.query.Get(ctx, desc, "name"); err != nil || v != "alpha" {
		t.Fatalf("relative Get = %q, %v", v, err)
	}
	if err := f.query.SetState(ctx, desc, "nodes", false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.query.GetList(ctx, desc, "*"); err != nil {
		t.Fatal(err)
	}

	state, err := f.query.GetState(ctx, desc)
	if err != nil {
		t.Fatal(err)
	}
	if state.CWP != "/cluster/nodes" || state.Query != "/cluster/nodes/*" || state.Index != 1 || state.Version != 1 {
		t.Fatalf("state = %+v", state)
	}

	if err := f.query.SetState(ctx, desc, "/nowhere", false); !errors.Is(err, errs.NoEntry) {
		t.Fatalf("cd to missing path: err = %v", err)
	}
}

func TestSetRollsOut(t *testing.T) {
	f := newFixture(t, 0, "/a", "1")
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, false, false)

	version, err := f.query.Set(ctx, desc, "/b", "2")
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Fatalf("version = %d, want 2", version)
	}
	if v, err := f.query.Get(ctx, desc, "/b"); err != nil || v != "2" {
		t.Fatalf("Get after Set = %q, %v", v, err)
	}
}

func TestSetRequiresQuorum(t *testing.T) {
	f := newFixture(t, 3, "/a", "1")
	ctx := context.Background()
	desc, _ := f.query.Connect(ctx, true, false)

	if _, err := f.query.Set(ctx, desc, "/a", "2"); !errors.Is(err, errs.NotQuorate) {
		t.Fatalf("err = %v, want NotQuorate", err)
	}
	if v, _ := f.config.Current().Lookup("/a"); v != "1" {
		t.Fatalf("value changed to %q", v)
	}
}
