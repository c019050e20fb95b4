package defs

import (
	"fmt"
	"strings"
	"time"
)

// CommType identifies the kind of request carried by a header
type CommType int32

// Message types. These are sequential codes, not bit flags.
const (
	CommConnect    CommType = 1
	CommDisconnect CommType = 2
	CommGet        CommType = 3
	CommGetList    CommType = 4
	CommSet        CommType = 5
	CommGetState   CommType = 6
	CommSetState   CommType = 7
	CommBroadcast  CommType = 8
	CommUpdate     CommType = 9
)

var commTypeNames = map[CommType]string{
	CommConnect:    "CONNECT",
	CommDisconnect: "DISCONNECT",
	CommGet:        "GET",
	CommGetList:    "GET_LIST",
	CommSet:        "SET",
	CommGetState:   "GET_STATE",
	CommSetState:   "SET_STATE",
	CommBroadcast:  "BROADCAST",
	CommUpdate:     "UPDATE",
}

// Valid reports whether t is one of the known message types
func (t CommType) Valid() bool {
	_, ok := commTypeNames[t]
	return ok
}

func (t CommType) String() string {
	if name, ok := commTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CommType<%d>", int32(t))
}

// CommFlag tunes a particular type of operation
type CommFlag int32

// Request flags
const (
	FlagConnectForce         CommFlag = 1
	FlagConnectBlocking      CommFlag = 2
	FlagSetStateResetQuery   CommFlag = 4
	FlagBroadcastFromQuorate CommFlag = 8
	FlagUpdateNotice         CommFlag = 16
	FlagUpdateNoticeAck      CommFlag = 32
	FlagUpdateCommit         CommFlag = 64
	FlagUpdateCommitAck      CommFlag = 128
	FlagUpdateStart          CommFlag = 256
)

var flagNames = []struct {
	flag CommFlag
	name string
}{
	{FlagConnectForce, "CONNECT_FORCE"},
	{FlagConnectBlocking, "CONNECT_BLOCKING"},
	{FlagSetStateResetQuery, "SET_STATE_RESET_QUERY"},
	{FlagBroadcastFromQuorate, "BROADCAST_FROM_QUORATE"},
	{FlagUpdateNotice, "UPDATE_NOTICE"},
	{FlagUpdateNoticeAck, "UPDATE_NOTICE_ACK"},
	{FlagUpdateCommit, "UPDATE_COMMIT"},
	{FlagUpdateCommitAck, "UPDATE_COMMIT_ACK"},
	{FlagUpdateStart, "UPDATE_START"},
}

// updateRequestFlags are the phase selectors a requester may send with UPDATE
const updateRequestFlags = FlagUpdateStart | FlagUpdateNotice | FlagUpdateCommit

// updateAckFlags only ever appear on UPDATE responses
const updateAckFlags = FlagUpdateNoticeAck | FlagUpdateCommitAck

// Has reports whether every bit of o is set in f
func (f CommFlag) Has(o CommFlag) bool {
	return f&o == o
}

// Set returns f with the bits of o set
func (f CommFlag) Set(o CommFlag) CommFlag {
	return f | o
}

// Clear returns f with the bits of o cleared
func (f CommFlag) Clear(o CommFlag) CommFlag {
	return f &^ o
}

func (f CommFlag) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	rest := f
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
			rest = rest.Clear(fn.flag)
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int32(rest)))
	}
	return strings.Join(parts, "|")
}

// UpdatePhase returns the single phase selector set on an UPDATE request.
// ok is false when none or more than one selector is present, or when
// an ack flag is set.
func (f CommFlag) UpdatePhase() (phase CommFlag, ok bool) {
	if f&updateAckFlags != 0 {
		return 0, false
	}
	switch f & updateRequestFlags {
	case FlagUpdateStart:
		return FlagUpdateStart, true
	case FlagUpdateNotice:
		return FlagUpdateNotice, true
	case FlagUpdateCommit:
		return FlagUpdateCommit, true
	default:
		return 0, false
	}
}

// Protocol limits and timings
const (
	MaxPayloadSize = 1 << 20

	DefaultPort            = 50006
	ConnectionRetryDelay   = 1 * time.Second
	DefaultConnIdleTimeout = 5 * time.Minute
)
