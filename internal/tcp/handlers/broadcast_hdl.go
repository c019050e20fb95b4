package handlers

import (
	"context"
	"encoding/json"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var _ primary.MessageHandler = (*BroadcastHandler)(nil)

// BroadcastHandler answers BROADCAST with the current document
type BroadcastHandler struct {
	ConfigService configsvc.IConfigService
	QuorumService quorum.IQuorumService
	Logger        primary.Logger
}

// HandleMessage implements the MessageHandler interface
func (h *BroadcastHandler) HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte) {
	if req.Flags.Has(defs.FlagBroadcastFromQuorate) {
		quorate, err := h.QuorumService.IsQuorate(ctx)
		if err != nil {
			return errorReply(req, err), nil
		}
		if !quorate {
			return req.Reply(defs.ErrCodeNotQuorate), nil
		}
	}

	doc := h.ConfigService.Current()
	docBytes, err := json.Marshal(doc)
	if err != nil {
		h.Logger.Error("Failed to marshal document", "version", doc.Version, "error", err)
		return req.Reply(defs.ErrCodeInternal), nil
	}

	h.Logger.Debug("Broadcast answered", "version", doc.Version)
	return req.Reply(defs.ErrCodeNone), docBytes
}
