package config

import "os"

type AppConfig struct {
	DebugMode      bool
	NodeConfig     *NodeConfig
	SessionConfig  *SessionConfig
	QuorumConfig   *QuorumConfig
	UpdateConfig   *UpdateConfig
	EngineConfig   *EngineConfig
	RedisConfig    *RedisConfig
	EtcdConfig     *EtcdConfig
	PostgresConfig *PostgresConfig
	JwtConfig      *JwtConfig
	HTTPConfig     *HTTPConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		NodeConfig:     NewNodeConfig(),
		SessionConfig:  NewSessionConfig(),
		QuorumConfig:   NewQuorumConfig(),
		UpdateConfig:   NewUpdateConfig(),
		EngineConfig:   NewEngineConfig(),
		RedisConfig:    NewRedisConfig(),
		EtcdConfig:     NewEtcdConfig(),
		PostgresConfig: NewPostgresConfig(),
		JwtConfig:      NewJwtConfig(),
		HTTPConfig:     NewHTTPConfig(),
	}
}
