package handlers

import (
	"context"
	"encoding/json"
	"strconv"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/query"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var (
	_ primary.MessageHandler = (*GetHandler)(nil)
	_ primary.MessageHandler = (*SetHandler)(nil)
)

// GetHandler handles GET and GET_LIST messages
type GetHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
	// List selects GET_LIST iteration
	List bool
}

// HandleMessage implements the MessageHandler interface
func (h *GetHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	q := payloadString(payload)

	var (
		value string
		err   error
	)
	if h.List {
		value, err = h.QueryService.GetList(ctx, req.Desc, q)
	} else {
		value, err = h.QueryService.Get(ctx, req.Desc, q)
	}
	if err != nil {
		h.Logger.Debug("Query failed", "type", req.Type.String(), "desc", req.Desc, "query", q, "error", err)
		return errorReply(req, err), nil
	}

	return req.Reply(defs.ErrCodeNone), []byte(value)
}

// SetHandler handles SET messages
type SetHandler struct {
	QueryService query.IQueryService
	Logger       primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *SetHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	var setData domain.SetPayload
	if err := json.Unmarshal(payload, &setData); err != nil || setData.Path == "" {
		h.Logger.Error("Failed to parse set request", "desc", req.Desc, "error", err)
		return req.Reply(defs.ErrCodeInvalidRequest), nil
	}

	version, err := h.QueryService.Set(ctx, req.Desc, setData.Path, setData.Value)
	if err != nil {
		return errorReply(req, err), nil
	}

	h.Logger.Info("Value set", "desc", req.Desc, "path", setData.Path, "version", version)
	return req.Reply(defs.ErrCodeNone), []byte(strconv.FormatInt(version, 10))
}
