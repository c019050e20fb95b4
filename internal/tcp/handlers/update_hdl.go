package handlers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var _ primary.MessageHandler = (*UpdateHandler)(nil)

// UpdateHandler handles the three UPDATE phases. The phase is selected by
// exactly one of the START, NOTICE or COMMIT flags.
type UpdateHandler struct {
	UpdateService update.IUpdateService
	Logger        primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *UpdateHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	phase, ok := req.Flags.UpdatePhase()
	if !ok {
		h.Logger.Error("Update without a single phase flag", "flags", req.Flags.String())
		return req.Reply(defs.ErrCodeInvalidRequest), nil
	}

	switch phase {
	case defs.FlagUpdateStart:
		return h.start(ctx, req, payload)
	case defs.FlagUpdateNotice:
		return h.notice(ctx, req, payload)
	default:
		return h.commit(ctx, req, payload)
	}
}

func (h *UpdateHandler) start(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	doc, err := domain.ParseDocument(payload)
	if err != nil {
		h.Logger.Error("Failed to parse update document", "error", err)
		return errorReply(req, err), nil
	}

	version, err := h.UpdateService.Start(ctx, doc)
	if err != nil {
		h.Logger.Warn("Update not started", "version", doc.Version, "error", err)
		return errorReply(req, err), nil
	}

	resp := req.Reply(defs.ErrCodeNone)
	resp.Flags = defs.FlagUpdateStart
	return resp, []byte(strconv.FormatInt(version, 10))
}

func (h *UpdateHandler) notice(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	var noticeData domain.NoticePayload
	if err := json.Unmarshal(payload, &noticeData); err != nil || noticeData.Document == nil {
		h.Logger.Error("Failed to parse update notice", "error", err)
		return req.Reply(defs.ErrCodeInvalidRequest), nil
	}

	doc, err := domain.NewDocument(noticeData.Document.Version, noticeData.Document.Entries)
	if err != nil {
		return errorReply(req, err), nil
	}

	if err := h.UpdateService.Notice(ctx, noticeData.TxnID, doc); err != nil {
		h.Logger.Warn("Update notice refused", "txn", noticeData.TxnID, "error", err)
		return errorReply(req, err), nil
	}

	resp := req.Reply(defs.ErrCodeNone)
	resp.Flags = defs.FlagUpdateNoticeAck
	return resp, nil
}

func (h *UpdateHandler) commit(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	txnID, err := uuid.Parse(payloadString(payload))
	if err != nil {
		h.Logger.Error("Failed to parse update commit", "error", err)
		return req.Reply(defs.ErrCodeInvalidRequest), nil
	}

	if err := h.UpdateService.Commit(ctx, txnID); err != nil {
		h.Logger.Warn("Update commit refused", "txn", txnID, "error", err)
		return errorReply(req, err), nil
	}

	resp := req.Reply(defs.ErrCodeNone)
	resp.Flags = defs.FlagUpdateCommitAck
	return resp, nil
}
