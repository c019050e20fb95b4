package primary

import (
	"context"

	"gitlab.com/ccsd.net/internal/tcp/defs"
)

// MessageHandler defines an interface for handling one message type.
// The returned header is the response; PayloadSize is filled in by the sender.
type MessageHandler interface {
	HandleMessage(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte)
}
