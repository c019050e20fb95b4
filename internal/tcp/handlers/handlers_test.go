package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/adapter/logging"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

type recordingUpdate struct {
	started *domain.Document
	noticed uuid.UUID
	commit  uuid.UUID
}

func (r *recordingUpdate) Start(ctx context.Context, doc *domain.Document) (int64, error) {
	r.started = doc
	return doc.Version, nil
}

func (r *recordingUpdate) Notice(ctx context.Context, txnID uuid.UUID, doc *domain.Document) error {
	r.noticed = txnID
	return nil
}

func (r *recordingUpdate) Commit(ctx context.Context, txnID uuid.UUID) error {
	if txnID != r.noticed {
		return errs.BadTransaction
	}
	r.commit = txnID
	return nil
}

func (r *recordingUpdate) Pending() *domain.PendingUpdate { return nil }
func (r *recordingUpdate) ExpirePending(time.Time) bool   { return false }

func TestPayloadStringTrimsNUL(t *testing.T) {
	if got := payloadString([]byte("/a/b\x00\x00")); got != "/a/b" {
		t.Fatalf("got %q", got)
	}
	if got := payloadString(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestUpdateHandlerPhases(t *testing.T) {
	upd := &recordingUpdate{}
	h := &UpdateHandler{UpdateService: upd, Logger: logging.NewNopLogger()}
	ctx := context.Background()

	resp, body := h.HandleMessage(ctx,
		defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateStart},
		[]byte(`{"version":4,"entries":[{"path":"/a","value":"1"}]}`))
	if resp.Error != defs.ErrCodeNone || resp.Flags != defs.FlagUpdateStart || string(body) != "4" {
		t.Fatalf("start = %+v %q", resp, body)
	}

	txn := uuid.New()
	doc, _ := domain.NewDocument(5, []domain.Entry{{Path: "/a", Value: "2"}})
	notice, _ := json.Marshal(domain.NoticePayload{TxnID: txn, Document: doc})
	resp, _ = h.HandleMessage(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateNotice}, notice)
	if resp.Error != defs.ErrCodeNone || !resp.Flags.Has(defs.FlagUpdateNoticeAck) || upd.noticed != txn {
		t.Fatalf("notice = %+v", resp)
	}

	resp, _ = h.HandleMessage(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateCommit}, []byte(txn.String()+"\x00"))
	if resp.Error != defs.ErrCodeNone || !resp.Flags.Has(defs.FlagUpdateCommitAck) || upd.commit != txn {
		t.Fatalf("commit = %+v", resp)
	}

	resp, _ = h.HandleMessage(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateCommit}, []byte(uuid.NewString()))
	if resp.Error != defs.ErrCodeBadTransaction {
		t.Fatalf("unknown txn = %+v", resp)
	}

	resp, _ = h.HandleMessage(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateNotice}, []byte(`{"txn":"not-a-uuid"}`))
	if resp.Error != defs.ErrCodeInvalidRequest {
		t.Fatalf("bad notice = %+v", resp)
	}
}
