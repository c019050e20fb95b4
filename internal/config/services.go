package config

import (
	"os"
	"time"

	"gitlab.com/ccsd.net/internal/tcp/defs"
)

type SessionConfig struct {
	MaxSessions            int
	IdleTimeout            time.Duration
	BlockingConnectTimeout time.Duration
	ConnIdleTimeout        time.Duration
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		MaxSessions:            getIntEnv("MAX_SESSIONS", 64),
		IdleTimeout:            getSecondsEnv("SESSION_IDLE_TIMEOUT_SEC", 10*time.Minute),
		BlockingConnectTimeout: getSecondsEnv("BLOCKING_CONNECT_TIMEOUT_SEC", 60*time.Second),
		ConnIdleTimeout:        getSecondsEnv("CONN_IDLE_TIMEOUT_SEC", defs.DefaultConnIdleTimeout),
	}
}

type QuorumConfig struct {
	// Backend selects the membership store: static, redis or etcd
	Backend       string
	StaticPeers   []string
	ExpectedVotes int
	MemberTimeout time.Duration
	PollInterval  time.Duration
}

func NewQuorumConfig() *QuorumConfig {
	return &QuorumConfig{
		Backend:       getEnv("MEMBERSHIP_BACKEND", "static"),
		StaticPeers:   getListEnv("PEERS"),
		ExpectedVotes: getIntEnv("EXPECTED_VOTES", 0),
		MemberTimeout: getSecondsEnv("MEMBER_TIMEOUT_SEC", 30*time.Second),
		PollInterval:  getSecondsEnv("QUORUM_POLL_INTERVAL_SEC", time.Second),
	}
}

type UpdateConfig struct {
	PhaseTimeout   time.Duration
	PendingTimeout time.Duration
	// StoreBackend selects where committed versions are kept: memory or postgres
	StoreBackend string
}

func NewUpdateConfig() *UpdateConfig {
	return &UpdateConfig{
		PhaseTimeout:   getSecondsEnv("UPDATE_PHASE_TIMEOUT_SEC", 10*time.Second),
		PendingTimeout: getSecondsEnv("UPDATE_PENDING_TIMEOUT_SEC", 60*time.Second),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
	}
}

type EngineConfig struct {
	HeartbeatInterval time.Duration
	ReapInterval      time.Duration
	DiscoverOnBoot    bool
}

func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		HeartbeatInterval: getSecondsEnv("HEARTBEAT_INTERVAL_SEC", 5*time.Second),
		ReapInterval:      getSecondsEnv("REAP_INTERVAL_SEC", 30*time.Second),
		DiscoverOnBoot:    os.Getenv("DISCOVER_ON_BOOT") != "false",
	}
}
