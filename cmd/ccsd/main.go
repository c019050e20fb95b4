package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gitlab.com/ccsd.net/internal/adapter/crypto"
	etcdmember "gitlab.com/ccsd.net/internal/adapter/etcd/memberport"
	"gitlab.com/ccsd.net/internal/adapter/memory"
	"gitlab.com/ccsd.net/internal/adapter/postgres/configrepository"
	redismember "gitlab.com/ccsd.net/internal/adapter/redis/memberport"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/discovery"
	"gitlab.com/ccsd.net/internal/core/services/query"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/domain"
	logger2 "gitlab.com/ccsd.net/internal/global/logger"
	http2 "gitlab.com/ccsd.net/internal/http"
	"gitlab.com/ccsd.net/internal/schedulerengine"
	"gitlab.com/ccsd.net/internal/tcp"
	"gitlab.com/ccsd.net/internal/tcp/client"
	"gitlab.com/ccsd.net/internal/telemetry"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	InitReader()
	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sysCfg := config.NewSystemConfig()
	logger2.SetDebug(sysCfg.DebugMode)
	logger := logger2.Logger
	defer logger.Sync()

	logger.Info("Starting cluster configuration daemon", "node", sysCfg.NodeConfig.ID, "version", version)
	telemetry.SetBuildInfo(version, gitSHA)

	ctxBg, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SECONDARY PORTS
	configRepo, closeStore, err := setupConfigStore(ctxBg, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up config store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	memberRepo, closeMembers, err := setupMembership(sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up membership store", "error", err)
		os.Exit(1)
	}
	defer closeMembers()

	peers := client.NewPeerTransport()

	//services
	self := domain.Member{
		ID:    sysCfg.NodeConfig.ID,
		Addr:  sysCfg.NodeConfig.AdvertiseAddr,
		Votes: sysCfg.NodeConfig.Votes,
	}
	configSvc := configsvc.NewConfigService(configRepo, sysCfg.NodeConfig.SeedFile, logger)
	quorumSvc := quorum.NewQuorumService(self, memberRepo, sysCfg.QuorumConfig, logger)
	sessionSvc := session.NewSessionService(sysCfg.SessionConfig, logger)
	updateSvc := update.NewUpdateService(configSvc, quorumSvc, peers, sysCfg.UpdateConfig, logger)
	querySvc := query.NewQueryService(sessionSvc, configSvc, quorumSvc, updateSvc, sysCfg.SessionConfig, logger)
	discoverySvc := discovery.NewDiscoveryService(configSvc, quorumSvc, peers, sysCfg.UpdateConfig.PhaseTimeout, logger)

	if err := configSvc.Load(ctxBg); err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := quorumSvc.RegisterSelf(ctxBg); err != nil {
		logger.Error("Failed to register with membership store", "error", err)
		os.Exit(1)
	}

	//server
	tcpServer := tcp.NewTCPServer(querySvc, configSvc, quorumSvc, updateSvc, logger,
		tcp.WithAddress(sysCfg.NodeConfig.TCPAddr),
		tcp.WithIdleTimeout(sysCfg.SessionConfig.ConnIdleTimeout),
	)
	if err := tcpServer.Start(); err != nil {
		logger.Error("Failed to start TCP server", "error", err)
		os.Exit(1)
	}

	if sysCfg.EngineConfig.DiscoverOnBoot {
		if replaced, err := discoverySvc.Discover(ctxBg); err != nil {
			logger.Warn("Boot discovery failed", "error", err)
		} else if replaced {
			logger.Info("Adopted newer configuration from peers", "version", configSvc.Current().Version)
		}
	}

	var tokens primary.TokenService
	if sysCfg.JwtConfig.Secret != "" {
		tokens = crypto.NewJWTService(sysCfg.JwtConfig)
	}
	serviceProvider := http2.NewServiceProvider(configSvc, sessionSvc, quorumSvc, updateSvc, tokens)
	httpServer := http2.NewServer(sysCfg.HTTPConfig.Port, sysCfg.HTTPConfig.ServiceName, *serviceProvider, logger)
	if err := httpServer.Init(); err != nil {
		panic(err)
	}
	if err := httpServer.Start(ctxBg); err != nil {
		logger.Error("Failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	engine := schedulerengine.NewSchedulerEngine(sysCfg.EngineConfig, quorumSvc, sessionSvc, updateSvc, discoverySvc, logger)
	engine.Start(ctxBg)

	<-quit
	logger.Info("Shutting down server...")
	cancel()
	engine.Wait()

	ctx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	if err := httpServer.Stop(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}
	if err := tcpServer.Stop(ctx); err != nil {
		logger.Error("TCP server forced to shutdown", "error", err)
	}
	if err := quorumSvc.Leave(ctx); err != nil {
		logger.Warn("Failed to leave membership store", "error", err)
	}

	logger.Info("successfully shutdown server")
}

// setupConfigStore picks where committed versions live
func setupConfigStore(ctx context.Context, sysCfg *config.AppConfig, logger primary.Logger) (secondary.ConfigRepository, func(), error) {
	switch sysCfg.UpdateConfig.StoreBackend {
	case "memory", "":
		return memory.NewConfigRepository(), func() {}, nil
	case "postgres":
		db, err := setupDatabase(sysCfg.PostgresConfig)
		if err != nil {
			return nil, nil, err
		}
		repo := configrepository.New(db, logger, sysCfg.PostgresConfig.Schema)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", sysCfg.UpdateConfig.StoreBackend)
	}
}

// setupMembership picks the store quorum is evaluated from
func setupMembership(sysCfg *config.AppConfig, logger primary.Logger) (secondary.MemberRepository, func(), error) {
	switch sysCfg.QuorumConfig.Backend {
	case "static", "":
		repo, err := memory.NewStaticMemberRepository(sysCfg.QuorumConfig.StaticPeers)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case "redis":
		redisClient := setupRedis(sysCfg.RedisConfig)
		return redismember.NewMemberRepository(redisClient, sysCfg.RedisConfig.KeyPrefix, logger),
			func() { redisClient.Close() }, nil
	case "etcd":
		cli, err := etcdmember.NewClient(sysCfg.EtcdConfig.Endpoints, sysCfg.EtcdConfig.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		return etcdmember.NewMemberRepository(cli, sysCfg.EtcdConfig.Prefix, logger),
			func() { cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown MEMBERSHIP_BACKEND %q", sysCfg.QuorumConfig.Backend)
	}
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// setupRedis sets up the Redis connection
func setupRedis(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// InitReader loads <env>.env when an environment name is given, else .env if present
func InitReader() {
	if len(os.Args) < 2 {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				log.Fatalf("Error loading .env file: %v", err)
			}
		}
		return
	}

	environment := os.Args[1]
	err := godotenv.Load(environment + ".env")
	if err != nil {
		log.Fatalf("Error loading %s.env file", environment)
	}
}
