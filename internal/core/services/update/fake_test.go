package update

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
)

var errPeerDown = errors.New("peer down")

// fakePeers records daemon-to-daemon calls and fails for addresses in down
type fakePeers struct {
	mu      sync.Mutex
	down    map[string]bool
	noticed map[string]uuid.UUID
	commits map[string]uuid.UUID
}

func newFakePeers(down ...string) *fakePeers {
	f := &fakePeers{
		down:    make(map[string]bool),
		noticed: make(map[string]uuid.UUID),
		commits: make(map[string]uuid.UUID),
	}
	for _, addr := range down {
		f.down[addr] = true
	}
	return f
}

func (f *fakePeers) Notice(ctx context.Context, addr string, txnID uuid.UUID, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return errPeerDown
	}
	f.noticed[addr] = txnID
	return nil
}

func (f *fakePeers) Commit(ctx context.Context, addr string, txnID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return errPeerDown
	}
	f.commits[addr] = txnID
	return nil
}

func (f *fakePeers) Fetch(ctx context.Context, addr string, fromQuorate bool) (*domain.Document, error) {
	return nil, errPeerDown
}

func (f *fakePeers) committed(addr string) (uuid.UUID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.commits[addr]
	return id, ok
}
