package handlers

import (
	"context"
	"encoding/json"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/query"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var (
	_ primary.MessageHandler = (*GetStateHandler)(nil)
	_ primary.MessageHandler = (*SetStateHandler)(nil)
)

// GetStateHandler handles GET_STATE messages
type GetStateHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *GetStateHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	state, err := h.QueryService.GetState(ctx, req.Desc)
	if err != nil {
		return errorReply(req, err), nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		h.Logger.Error("Failed to marshal session state", "desc", req.Desc, "error", err)
		return req.Reply(defs.ErrCodeInternal), nil
	}
	return req.Reply(defs.ErrCodeNone), stateBytes
}

// SetStateHandler handles SET_STATE messages
type SetStateHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *SetStateHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	path := payloadString(payload)
	reset := req.Flags.Has(defs.FlagSetStateResetQuery)

	if err := h.QueryService.SetState(ctx, req.Desc, path, reset); err != nil {
		h.Logger.Debug("Set state failed", "desc", req.Desc, "path", path, "error", err)
		return errorReply(req, err), nil
	}
	return req.Reply(defs.ErrCodeNone), nil
}
