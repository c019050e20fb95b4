package domain

import "time"

// Session is the server-side state behind an open descriptor
type Session struct {
	Desc   int32  `json:"desc"`
	CWP    string `json:"cwp"`
	Forced bool   `json:"forced"`

	// GET_LIST cursor
	Query   string `json:"query"`
	Index   int    `json:"index"`
	Version int64  `json:"version"`

	OpenedAt time.Time `json:"opened_at"`
	LastUsed time.Time `json:"last_used"`
}

// ResetCursor forgets the GET_LIST position
func (s *Session) ResetCursor() {
	s.Query = ""
	s.Index = 0
	s.Version = 0
}

// SessionState is the GET_STATE payload
type SessionState struct {
	CWP     string `json:"cwp"`
	Query   string `json:"query"`
	Index   int    `json:"index"`
	Version int64  `json:"version"`
}
