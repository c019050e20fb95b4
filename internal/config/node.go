package config

import (
	"fmt"
	"os"

	"gitlab.com/ccsd.net/internal/tcp/defs"
)

type NodeConfig struct {
	ID      string
	TCPAddr string
	// AdvertiseAddr is what peers dial; defaults to TCPAddr
	AdvertiseAddr string
	Votes         int
	SeedFile      string
}

func NewNodeConfig() *NodeConfig {
	hostname, _ := os.Hostname()
	tcpAddr := getEnv("CCSD_TCP_ADDR", fmt.Sprintf(":%d", defs.DefaultPort))
	return &NodeConfig{
		ID:            getEnv("CCSD_NODE_ID", hostname),
		TCPAddr:       tcpAddr,
		AdvertiseAddr: getEnv("CCSD_ADVERTISE_ADDR", tcpAddr),
		Votes:         getIntEnv("CCSD_VOTES", 1),
		SeedFile:      os.Getenv("CCSD_CONFIG_FILE"),
	}
}
