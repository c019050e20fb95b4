// Package client speaks the comm-header protocol to a ccsd daemon.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/tcp/connectionmanager"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

// DefaultTimeout bounds a request when ctx carries no deadline
const DefaultTimeout = 30 * time.Second

// Client is one connection to a daemon. Requests are serialized.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to addr
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, timeout: DefaultTimeout}
}

// Close closes the connection. Open descriptors stay open on the daemon.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one request and returns the response header and payload. A non-zero
// error code is returned as a *defs.CommError together with the header.
func (c *Client) Do(ctx context.Context, req defs.Header, payload []byte) (defs.Header, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return defs.Header{}, nil, err
	}
	defer c.conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := connectionmanager.SendMessage(c.conn, req, payload); err != nil {
		return defs.Header{}, nil, err
	}

	resp, respPayload, err := connectionmanager.ReadMessage(c.conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return defs.Header{}, nil, fmt.Errorf("%s: %w", req.Type, ctxErr)
		}
		return defs.Header{}, nil, fmt.Errorf("read %s response: %w", req.Type, err)
	}
	if resp.Type != req.Type {
		return resp, nil, fmt.Errorf("response type %s does not match request %s", resp.Type, req.Type)
	}
	if resp.Error != defs.ErrCodeNone {
		return resp, respPayload, defs.NewCommError(resp.Error, string(respPayload))
	}
	return resp, respPayload, nil
}

// Connect opens a descriptor with the CONNECT_* flags
func (c *Client) Connect(ctx context.Context, flags defs.CommFlag) (int32, error) {
	resp, _, err := c.Do(ctx, defs.Header{Type: defs.CommConnect, Flags: flags}, nil)
	if err != nil {
		return 0, err
	}
	return resp.Desc, nil
}

// Disconnect closes a descriptor
func (c *Client) Disconnect(ctx context.Context, desc int32) error {
	_, _, err := c.Do(ctx, defs.Header{Type: defs.CommDisconnect, Desc: desc}, nil)
	return err
}

// Get returns the first value matching query
func (c *Client) Get(ctx context.Context, desc int32, query string) (string, error) {
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommGet, Desc: desc}, []byte(query))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// GetList returns the next value matching query
func (c *Client) GetList(ctx context.Context, desc int32, query string) (string, error) {
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommGetList, Desc: desc}, []byte(query))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// Set writes a value and returns the committed document version
func (c *Client) Set(ctx context.Context, desc int32, path, value string) (int64, error) {
	body, err := json.Marshal(domain.SetPayload{Path: path, Value: value})
	if err != nil {
		return 0, err
	}
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommSet, Desc: desc}, body)
	if err != nil {
		return 0, err
	}
	return parseVersion(payload)
}

// GetState returns the session's working path and list cursor
func (c *Client) GetState(ctx context.Context, desc int32) (*domain.SessionState, error) {
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommGetState, Desc: desc}, nil)
	if err != nil {
		return nil, err
	}
	var state domain.SessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// SetState changes the working path; reset also restarts list iteration
func (c *Client) SetState(ctx context.Context, desc int32, path string, reset bool) error {
	var flags defs.CommFlag
	if reset {
		flags = flags.Set(defs.FlagSetStateResetQuery)
	}
	_, _, err := c.Do(ctx, defs.Header{Type: defs.CommSetState, Flags: flags, Desc: desc}, []byte(path))
	return err
}

// Broadcast fetches the daemon's current document
func (c *Client) Broadcast(ctx context.Context, fromQuorate bool) (*domain.Document, error) {
	var flags defs.CommFlag
	if fromQuorate {
		flags = flags.Set(defs.FlagBroadcastFromQuorate)
	}
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommBroadcast, Flags: flags}, nil)
	if err != nil {
		return nil, err
	}
	return domain.ParseDocument(payload)
}

// StartUpdate asks the daemon to coordinate a rollout of doc
func (c *Client) StartUpdate(ctx context.Context, doc *domain.Document) (int64, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, err
	}
	_, payload, err := c.Do(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateStart}, body)
	if err != nil {
		return 0, err
	}
	return parseVersion(payload)
}

// Notice stages doc on a peer under txnID
func (c *Client) Notice(ctx context.Context, txnID uuid.UUID, doc *domain.Document) error {
	body, err := json.Marshal(domain.NoticePayload{TxnID: txnID, Document: doc})
	if err != nil {
		return err
	}
	resp, _, err := c.Do(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateNotice}, body)
	if err != nil {
		return err
	}
	if !resp.Flags.Has(defs.FlagUpdateNoticeAck) {
		return fmt.Errorf("notice %s: response flags %s carry no NOTICE_ACK", txnID, resp.Flags)
	}
	return nil
}

// Commit promotes the staged update txnID on a peer
func (c *Client) Commit(ctx context.Context, txnID uuid.UUID) error {
	resp, _, err := c.Do(ctx, defs.Header{Type: defs.CommUpdate, Flags: defs.FlagUpdateCommit}, []byte(txnID.String()))
	if err != nil {
		return err
	}
	if !resp.Flags.Has(defs.FlagUpdateCommitAck) {
		return fmt.Errorf("commit %s: response flags %s carry no COMMIT_ACK", txnID, resp.Flags)
	}
	return nil
}

func parseVersion(payload []byte) (int64, error) {
	version, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode version: %w", err)
	}
	return version, nil
}
