package domain

import (
	"time"

	"github.com/google/uuid"
)

// UpdatePhase names a step of the configuration rollout
type UpdatePhase string

const (
	UpdatePhaseStart  UpdatePhase = "START"
	UpdatePhaseNotice UpdatePhase = "NOTICE"
	UpdatePhaseCommit UpdatePhase = "COMMIT"
)

// NoticePayload is sent by the coordinator with UPDATE|NOTICE
type NoticePayload struct {
	TxnID    uuid.UUID `json:"txn"`
	Document *Document `json:"document"`
}

// PendingUpdate is a noticed but not yet committed document
type PendingUpdate struct {
	TxnID      uuid.UUID
	Document   *Document
	ReceivedAt time.Time
}

// SetPayload is the body of a SET request
type SetPayload struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// ConfigVersion is one committed document as stored in the history table
type ConfigVersion struct {
	Version     int64     `db:"version"`
	TxnID       uuid.UUID `db:"txn_id"`
	Document    []byte    `db:"document"`
	CommittedAt time.Time `db:"committed_at"`
}
