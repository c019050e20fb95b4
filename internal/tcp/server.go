// package tcp serves the comm-header protocol to clients and peer daemons
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/query"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/tcp/connectionmanager"
	"gitlab.com/ccsd.net/internal/tcp/defs"
	"gitlab.com/ccsd.net/internal/tcp/handlers"
	"gitlab.com/ccsd.net/internal/telemetry"
)

// TCPServer handles TCP connections from clients and peers
type TCPServer struct {
	address       string
	idleTimeout   time.Duration
	queryService  query.IQueryService
	configService configsvc.IConfigService
	quorumService quorum.IQuorumService
	updateService update.IUpdateService
	logger        primary.Logger
	listener      net.Listener
	connectionMgr *connectionmanager.ConnectionManager
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	handlers      map[defs.CommType]primary.MessageHandler
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// WithIdleTimeout sets how long a connection may sit without a request
func WithIdleTimeout(d time.Duration) TCPServerOption {
	return func(s *TCPServer) {
		s.idleTimeout = d
	}
}

// NewTCPServer creates a new TCP server
func NewTCPServer(
	queryService query.IQueryService,
	configService configsvc.IConfigService,
	quorumService quorum.IQuorumService,
	updateService update.IUpdateService,
	logger primary.Logger,
	options ...TCPServerOption,
) *TCPServer {
	server := &TCPServer{
		address:       fmt.Sprintf(":%d", defs.DefaultPort),
		idleTimeout:   defs.DefaultConnIdleTimeout,
		queryService:  queryService,
		configService: configService,
		quorumService: quorumService,
		updateService: updateService,
		logger:        logger,
		connectionMgr: connectionmanager.NewConnectionManager(logger),
		stopCh:        make(chan struct{}),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	// Register message handlers
	server.setupMessageHandlers()

	return server
}

// setupMessageHandlers registers one handler per message type
func (s *TCPServer) setupMessageHandlers() {
	s.handlers = map[defs.CommType]primary.MessageHandler{
		defs.CommConnect:    &handlers.ConnectHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommDisconnect: &handlers.DisconnectHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommGet:        &handlers.GetHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommGetList:    &handlers.GetHandler{QueryService: s.queryService, Logger: s.logger, List: true},
		defs.CommSet:        &handlers.SetHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommGetState:   &handlers.GetStateHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommSetState:   &handlers.SetStateHandler{QueryService: s.queryService, Logger: s.logger},
		defs.CommBroadcast:  &handlers.BroadcastHandler{ConfigService: s.configService, QuorumService: s.quorumService, Logger: s.logger},
		defs.CommUpdate:     &handlers.UpdateHandler{UpdateService: s.updateService, Logger: s.logger},
	}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.listener.Addr().String())

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the bound listener address, or nil before Start
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines or ctx, whichever comes first
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		// Close listener
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Error("Failed to close listener", "error", err)
			}
		}

		// Close all connections
		s.connectionMgr.CloseAll()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionCount returns the number of live connections
func (s *TCPServer) ConnectionCount() int {
	return s.connectionMgr.Count()
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
				continue
			}
		}

		// Handle connection in a goroutine
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves requests on one connection, in order, until it closes
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := s.connectionMgr.Add(conn)
	telemetry.OpenConnections.Set(float64(s.connectionMgr.Count()))
	defer func() {
		s.connectionMgr.Remove(connID)
		telemetry.OpenConnections.Set(float64(s.connectionMgr.Count()))
	}()

	log := s.logger.With("connID", connID, "remote", conn.RemoteAddr().String())
	log.Debug("Connection opened")

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if s.idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}

		// Read and parse message
		req, payload, err := connectionmanager.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, connectionmanager.ErrPayloadSize) {
				log.Error("Rejecting oversized message", "error", err)
				_ = connectionmanager.SendError(conn, req, defs.ErrCodeInvalidRequest)
			} else if isTimeout(err) {
				log.Info("Closing idle connection")
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Error("Failed to read message", "error", err)
			}
			log.Debug("Connection closed")
			return
		}

		resp, respPayload := s.dispatch(req, payload)

		if err := connectionmanager.SendMessage(conn, resp, respPayload); err != nil {
			log.Error("Failed to write response", "type", req.Type.String(), "error", err)
			return
		}
	}
}

// dispatch runs the handler registered for the request type
func (s *TCPServer) dispatch(req defs.Header, payload []byte) (defs.Header, []byte) {
	start := time.Now()

	handler, exists := s.handlers[req.Type]
	if !exists {
		s.logger.Error("Unknown message type", "type", int32(req.Type))
		telemetry.ObserveRequest("unknown", int32(defs.ErrCodeInvalidRequest), time.Since(start))
		return req.Reply(defs.ErrCodeInvalidRequest), nil
	}

	// Create context for message handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	resp, respPayload := handler.HandleMessage(ctx, req, payload)
	telemetry.ObserveRequest(req.Type.String(), int32(resp.Error), time.Since(start))
	return resp, respPayload
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
