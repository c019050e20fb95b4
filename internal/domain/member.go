package domain

import "time"

// Member represents a cluster daemon taking part in quorum
type Member struct {
	ID            string    `json:"id"`
	Addr          string    `json:"addr"`
	Votes         int       `json:"votes"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	IsLive        bool      `json:"is_live"`
}

// QuorumStatus is a point-in-time view of cluster quorum
type QuorumStatus struct {
	Quorate       bool      `json:"quorate"`
	LiveVotes     int       `json:"live_votes"`
	ExpectedVotes int       `json:"expected_votes"`
	Needed        int       `json:"needed"`
	Members       []*Member `json:"members"`
}
