package config

import "time"

type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

func NewEtcdConfig() *EtcdConfig {
	endpoints := getListEnv("ETCD_ENDPOINTS")
	if len(endpoints) == 0 {
		endpoints = []string{"http://localhost:2379"}
	}
	return &EtcdConfig{
		Endpoints:   endpoints,
		DialTimeout: getSecondsEnv("ETCD_DIAL_TIMEOUT_SEC", 5*time.Second),
		Prefix:      getEnv("ETCD_PREFIX", "/ccsd/members/"),
	}
}
