package client

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.PeerTransport = (*PeerTransport)(nil)

// PeerTransport dials a fresh connection for every daemon-to-daemon request
type PeerTransport struct{}

func NewPeerTransport() *PeerTransport {
	return &PeerTransport{}
}

func (p *PeerTransport) Notice(ctx context.Context, addr string, txnID uuid.UUID, doc *domain.Document) error {
	c, err := Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Notice(ctx, txnID, doc)
}

func (p *PeerTransport) Commit(ctx context.Context, addr string, txnID uuid.UUID) error {
	c, err := Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Commit(ctx, txnID)
}

func (p *PeerTransport) Fetch(ctx context.Context, addr string, fromQuorate bool) (*domain.Document, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Broadcast(ctx, fromQuorate)
}
