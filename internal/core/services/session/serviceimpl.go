package session

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/telemetry"
)

var _ ISessionService = &SessionService{}

const defaultMaxSessions = 64

// SessionService keeps open descriptors in memory
type SessionService struct {
	mu       sync.Mutex
	sessions map[int32]*domain.Session
	lastDesc int32

	maxSessions int
	idleTimeout time.Duration
	logger      primary.Logger
	now         func() time.Time
}

// NewSessionService creates the descriptor table
func NewSessionService(cfg *config.SessionConfig, logger primary.Logger) *SessionService {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	return &SessionService{
		sessions:    make(map[int32]*domain.Session),
		maxSessions: maxSessions,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Open allocates the next free descriptor after the last one handed out
func (s *SessionService) Open(forced bool) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		return nil, fmt.Errorf("open session: %w (%d open)", errs.TooManySessions, len(s.sessions))
	}

	desc := s.lastDesc
	for {
		if desc == math.MaxInt32 {
			desc = 1
		} else {
			desc++
		}
		if _, taken := s.sessions[desc]; !taken {
			break
		}
	}
	s.lastDesc = desc

	now := s.now()
	sess := &domain.Session{
		Desc:     desc,
		CWP:      "/",
		Forced:   forced,
		OpenedAt: now,
		LastUsed: now,
	}
	s.sessions[desc] = sess
	telemetry.OpenSessions.Set(float64(len(s.sessions)))

	s.logger.Debug("Session opened", "desc", desc, "forced", forced)
	cp := *sess
	return &cp, nil
}

// Close releases a descriptor
func (s *SessionService) Close(desc int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[desc]; !ok {
		return fmt.Errorf("close descriptor %d: %w", desc, errs.BadDescriptor)
	}
	delete(s.sessions, desc)
	telemetry.OpenSessions.Set(float64(len(s.sessions)))

	s.logger.Debug("Session closed", "desc", desc)
	return nil
}

// Get returns a copy of the session behind desc
func (s *SessionService) Get(desc int32) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[desc]
	if !ok {
		return nil, fmt.Errorf("descriptor %d: %w", desc, errs.BadDescriptor)
	}
	sess.LastUsed = s.now()
	cp := *sess
	return &cp, nil
}

// Update runs fn on the live session. Changes made by fn are kept even when it fails.
func (s *SessionService) Update(desc int32, fn func(sess *domain.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[desc]
	if !ok {
		return fmt.Errorf("descriptor %d: %w", desc, errs.BadDescriptor)
	}
	sess.LastUsed = s.now()
	return fn(sess)
}

// List returns copies of all open sessions ordered by descriptor
func (s *SessionService) List() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Desc < out[j].Desc })
	return out
}

// Reap closes sessions that have been idle for longer than the idle timeout
func (s *SessionService) Reap(now time.Time) []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idleTimeout <= 0 {
		return nil
	}

	var reaped []int32
	cutoff := now.Add(-s.idleTimeout)
	for desc, sess := range s.sessions {
		if sess.LastUsed.Before(cutoff) {
			delete(s.sessions, desc)
			reaped = append(reaped, desc)
		}
	}
	if len(reaped) > 0 {
		sort.Slice(reaped, func(i, j int) bool { return reaped[i] < reaped[j] })
		telemetry.OpenSessions.Set(float64(len(s.sessions)))
		s.logger.Info("Reaped idle sessions", "descs", reaped)
	}
	return reaped
}

// Count returns the number of open sessions
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
