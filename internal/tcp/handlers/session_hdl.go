package handlers

import (
	"context"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/query"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var (
	_ primary.MessageHandler = (*ConnectHandler)(nil)
	_ primary.MessageHandler = (*DisconnectHandler)(nil)
)

// ConnectHandler handles CONNECT messages
type ConnectHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *ConnectHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	force := req.Flags.Has(defs.FlagConnectForce)
	blocking := req.Flags.Has(defs.FlagConnectBlocking)

	desc, err := h.QueryService.Connect(ctx, force, blocking)
	if err != nil {
		h.Logger.Warn("Connect refused", "flags", req.Flags.String(), "error", err)
		return errorReply(req, err), nil
	}

	resp := req.Reply(defs.ErrCodeNone)
	resp.Desc = desc
	h.Logger.Debug("Client connected", "desc", desc, "flags", req.Flags.String())
	return resp, nil
}

// DisconnectHandler handles DISCONNECT messages
type DisconnectHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *DisconnectHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	if err := h.QueryService.Disconnect(ctx, req.Desc); err != nil {
		h.Logger.Warn("Disconnect failed", "desc", req.Desc, "error", err)
		return errorReply(req, err), nil
	}
	return req.Reply(defs.ErrCodeNone), nil
}
