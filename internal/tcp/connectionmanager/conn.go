package connectionmanager

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

var ErrPayloadSize = errors.New("invalid payload size")

// ConnectionManager tracks live client and peer connections
type ConnectionManager struct {
	Connections map[uint64]net.Conn
	ConnMutex   sync.RWMutex
	nextID      uint64
	Logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		Connections: make(map[uint64]net.Conn),
		Logger:      logger,
	}
}

// Add registers a connection and returns the id it is tracked under
func (cm *ConnectionManager) Add(conn net.Conn) uint64 {
	cm.ConnMutex.Lock()
	defer cm.ConnMutex.Unlock()

	cm.nextID++
	cm.Connections[cm.nextID] = conn
	return cm.nextID
}

// Remove forgets a connection when it is closed
func (cm *ConnectionManager) Remove(id uint64) {
	cm.ConnMutex.Lock()
	delete(cm.Connections, id)
	cm.ConnMutex.Unlock()
}

// Count returns the number of live connections
func (cm *ConnectionManager) Count() int {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()
	return len(cm.Connections)
}

// CloseAll closes every tracked connection
func (cm *ConnectionManager) CloseAll() {
	cm.ConnMutex.Lock()
	defer cm.ConnMutex.Unlock()

	for id, conn := range cm.Connections {
		if err := conn.Close(); err != nil {
			cm.Logger.Error("Failed to close connection", "connID", id, "error", err)
		}
		delete(cm.Connections, id)
	}
}

// SendMessage writes a header followed by its payload. PayloadSize is taken from payload.
func SendMessage(w io.Writer, hdr defs.Header, payload []byte) error {
	hdr.PayloadSize = int32(len(payload))

	buf := make([]byte, defs.HeaderSize+len(payload))
	hdr.Encode(buf)
	copy(buf[defs.HeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// SendError answers req with an error-only response
func SendError(w io.Writer, req defs.Header, code defs.ErrorCode) error {
	return SendMessage(w, req.Reply(code), nil)
}

// ReadMessage reads one header and the payload it announces
func ReadMessage(r io.Reader) (defs.Header, []byte, error) {
	raw := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return defs.Header{}, nil, err
	}

	hdr, err := defs.DecodeHeader(raw)
	if err != nil {
		return defs.Header{}, nil, err
	}

	if hdr.PayloadSize < 0 || hdr.PayloadSize > defs.MaxPayloadSize {
		return hdr, nil, fmt.Errorf("%w: %d", ErrPayloadSize, hdr.PayloadSize)
	}

	payload := make([]byte, hdr.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return hdr, nil, fmt.Errorf("failed to read payload: %w", err)
	}

	return hdr, payload, nil
}
