package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

func TestConfigRepository(t *testing.T) {
	repo := NewConfigRepository()
	ctx := context.Background()

	if doc, err := repo.LoadLatest(ctx); doc != nil || err != nil {
		t.Fatalf("empty repo: %+v, %v", doc, err)
	}

	for _, v := range []int64{2, 5, 3} {
		doc, _ := domain.NewDocument(v, []domain.Entry{{Path: "/v", Value: "x"}})
		if err := repo.SaveVersion(ctx, doc, uuid.New()); err != nil {
			t.Fatal(err)
		}
	}

	latest, _ := repo.LoadLatest(ctx)
	if latest.Version != 5 {
		t.Fatalf("latest = %d", latest.Version)
	}

	versions, _ := repo.ListVersions(ctx, 0)
	if len(versions) != 3 || versions[0].Version != 5 || versions[2].Version != 2 {
		t.Fatalf("versions = %+v", versions)
	}
	parsed, err := domain.ParseDocument(versions[0].Document)
	if err != nil || parsed.Version != 5 {
		t.Fatalf("stored document = %+v, %v", parsed, err)
	}
}

func TestStaticMembersStayLive(t *testing.T) {
	repo, err := NewStaticMemberRepository([]string{"n2=10.0.0.2:50006", "n3=10.0.0.3:50006"})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	members, _ := repo.ListMembers(context.Background())
	if len(members) != 2 {
		t.Fatalf("members = %+v", members)
	}
	for _, m := range members {
		if !m.LastHeartbeat.Equal(now) || m.Votes != 1 {
			t.Fatalf("member = %+v", m)
		}
	}
}

func TestStaticMemberEntryErrors(t *testing.T) {
	for _, entry := range []string{"n2", "=addr", "n2="} {
		if _, err := NewStaticMemberRepository([]string{entry}); err == nil {
			t.Errorf("entry %q accepted", entry)
		}
	}
}

func TestMemberRepositoryCopies(t *testing.T) {
	repo := NewMemberRepository()
	ctx := context.Background()
	m := &domain.Member{ID: "n1", Votes: 2}
	repo.Register(ctx, m)
	m.Votes = 9

	members, _ := repo.ListMembers(ctx)
	if members[0].Votes != 2 {
		t.Fatalf("repository kept caller's pointer: %+v", members[0])
	}
	members[0].Votes = 7
	again, _ := repo.ListMembers(ctx)
	if again[0].Votes != 2 {
		t.Fatal("ListMembers returned live pointers")
	}
}
