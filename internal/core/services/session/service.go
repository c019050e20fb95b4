package session

import (
	"time"

	"gitlab.com/ccsd.net/internal/domain"
)

// ISessionService owns the descriptor table
type ISessionService interface {
	// Open allocates a descriptor; forced marks a session opened without quorum
	Open(forced bool) (*domain.Session, error)

	// Close releases a descriptor
	Close(desc int32) error

	// Get returns a copy of the session behind desc
	Get(desc int32) (*domain.Session, error)

	// Update runs fn on the live session under the table lock
	Update(desc int32, fn func(s *domain.Session) error) error

	// List returns copies of all open sessions ordered by descriptor
	List() []*domain.Session

	// Reap closes sessions idle since before now-IdleTimeout
	Reap(now time.Time) []int32

	// Count returns the number of open sessions
	Count() int
}
