package http

// this is entry point of the admin http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/handlers"
	"gitlab.com/ccsd.net/internal/handlers/cluster"
	"gitlab.com/ccsd.net/internal/handlers/configs"
	"gitlab.com/ccsd.net/internal/telemetry"
)

type ServiceProvider struct {
	configService  configsvc.IConfigService
	sessionService session.ISessionService
	quorumService  quorum.IQuorumService
	updateService  update.IUpdateService

	tokens primary.TokenService
}

// NewServiceProvider bundles the services behind the admin API. A nil
// tokens service leaves write routes unauthenticated.
func NewServiceProvider(
	configService configsvc.IConfigService,
	sessionService session.ISessionService,
	quorumService quorum.IQuorumService,
	updateService update.IUpdateService,
	tokens primary.TokenService,
) *ServiceProvider {
	return &ServiceProvider{
		configService:  configService,
		sessionService: sessionService,
		quorumService:  quorumService,
		updateService:  updateService,
		tokens:         tokens,
	}
}

type Server struct {
	router          *mux.Router
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
	srv             *http.Server
	listener        net.Listener
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	middleware := handlers.New(s.ServiceProvider.tokens)

	r.HandleFunc("/healthz", s.healthz).Methods("GET")
	r.Handle("/metrics", telemetry.MetricsHandler()).Methods("GET")

	configs.
		NewHandler(s.ServiceProvider.configService, s.ServiceProvider.updateService, s.logger).
		Register(r, middleware.JWTMiddleware)
	cluster.
		NewHandler(s.ServiceProvider.sessionService, s.ServiceProvider.quorumService, s.logger).
		Register(r)

	s.router = r
	return nil
}

// Handler returns the routed handler; Init must have been called
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{
		"service": s.ServiceName,
		"version": s.ServiceProvider.configService.Current().Version,
	})
}

// Start binds the port and serves in the background
func (s *Server) Start(ctx context.Context) error {
	// Set up server
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	s.listener = ln

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
