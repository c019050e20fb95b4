package handlers

import (
	"bytes"

	"gitlab.com/ccsd.net/internal/tcp/defs"
)

// errorReply answers req with the wire code for err
func errorReply(req defs.Header, err error) defs.Header {
	return req.Reply(defs.ErrorCodeOf(err))
}

// payloadString reads a text payload. C clients send a trailing NUL.
func payloadString(payload []byte) string {
	return string(bytes.TrimRight(payload, "\x00"))
}
