package configs

import "time"

// SetConfigResponse reports the version a write was committed under
type SetConfigResponse struct {
	Version int64 `json:"version"`
}

type HistoryEntry struct {
	Version     int64     `json:"version"`
	TxnID       string    `json:"txn"`
	CommittedAt time.Time `json:"committed_at"`
}
