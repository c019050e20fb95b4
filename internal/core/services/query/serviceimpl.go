package query

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/services/configsvc"
	"gitlab.com/ccsd.net/internal/core/services/quorum"
	"gitlab.com/ccsd.net/internal/core/services/session"
	"gitlab.com/ccsd.net/internal/core/services/update"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
)

var _ IQueryService = &QueryService{}

// QueryService implements IQueryService
type QueryService struct {
	sessions        session.ISessionService
	configSvc       configsvc.IConfigService
	quorumSvc       quorum.IQuorumService
	updateSvc       update.IUpdateService
	blockingTimeout time.Duration
	logger          primary.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	sessions session.ISessionService,
	configSvc configsvc.IConfigService,
	quorumSvc quorum.IQuorumService,
	updateSvc update.IUpdateService,
	cfg *config.SessionConfig,
	logger primary.Logger,
) *QueryService {
	return &QueryService{
		sessions:        sessions,
		configSvc:       configSvc,
		quorumSvc:       quorumSvc,
		updateSvc:       updateSvc,
		blockingTimeout: cfg.BlockingConnectTimeout,
		logger:          logger,
	}
}

// Connect opens a descriptor. Without quorum, force wins over blocking.
func (s *QueryService) Connect(ctx context.Context, force, blocking bool) (int32, error) {
	quorate, err := s.quorumSvc.IsQuorate(ctx)
	if err != nil {
		return 0, err
	}

	forced := false
	if !quorate {
		switch {
		case force:
			forced = true
			s.logger.Warn("Opening forced session without quorum")
		case blocking:
			waitCtx := ctx
			if s.blockingTimeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, s.blockingTimeout)
				defer cancel()
			}
			if err := s.quorumSvc.WaitQuorate(waitCtx); err != nil {
				return 0, err
			}
		default:
			return 0, fmt.Errorf("connect: %w", errs.NotQuorate)
		}
	}

	sess, err := s.sessions.Open(forced)
	if err != nil {
		return 0, err
	}
	return sess.Desc, nil
}

func (s *QueryService) Disconnect(ctx context.Context, desc int32) error {
	return s.sessions.Close(desc)
}

// Get returns the value of the first entry matching query, relative to the working path
func (s *QueryService) Get(ctx context.Context, desc int32, query string) (string, error) {
	sess, err := s.sessions.Get(desc)
	if err != nil {
		return "", err
	}

	resolved := domain.Resolve(sess.CWP, query)
	matches := s.configSvc.Current().Match(resolved)
	if len(matches) == 0 {
		return "", fmt.Errorf("get %q: %w", resolved, errs.NoEntry)
	}
	return matches[0].Value, nil
}

// GetList walks the matches of query one call at a time. A new query or a new
// document version restarts the walk; an exhausted walk stays exhausted.
func (s *QueryService) GetList(ctx context.Context, desc int32, query string) (string, error) {
	doc := s.configSvc.Current()

	var value string
	err := s.sessions.Update(desc, func(sess *domain.Session) error {
		resolved := domain.Resolve(sess.CWP, query)
		if sess.Query != resolved || sess.Version != doc.Version {
			sess.Query = resolved
			sess.Index = 0
			sess.Version = doc.Version
		}

		matches := doc.Match(resolved)
		if sess.Index >= len(matches) {
			return fmt.Errorf("get list %q at %d: %w", resolved, sess.Index, errs.NoEntry)
		}
		value = matches[sess.Index].Value
		sess.Index++
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set writes one value through the update protocol and returns the new version
func (s *QueryService) Set(ctx context.Context, desc int32, path, value string) (int64, error) {
	sess, err := s.sessions.Get(desc)
	if err != nil {
		return 0, err
	}

	quorate, err := s.quorumSvc.IsQuorate(ctx)
	if err != nil {
		return 0, err
	}
	if !quorate {
		return 0, fmt.Errorf("set %q: %w", path, errs.NotQuorate)
	}

	doc, err := s.configSvc.Current().With(domain.Resolve(sess.CWP, path), value)
	if err != nil {
		return 0, err
	}

	version, err := s.updateSvc.Start(ctx, doc)
	if err != nil {
		s.logger.Error("Failed to roll out set", "desc", desc, "path", path, "error", err)
		return 0, err
	}
	return version, nil
}

func (s *QueryService) GetState(ctx context.Context, desc int32) (*domain.SessionState, error) {
	sess, err := s.sessions.Get(desc)
	if err != nil {
		return nil, err
	}
	return &domain.SessionState{
		CWP:     sess.CWP,
		Query:   sess.Query,
		Index:   sess.Index,
		Version: sess.Version,
	}, nil
}

// SetState moves the working path. An empty path keeps the current one.
func (s *QueryService) SetState(ctx context.Context, desc int32, path string, resetQuery bool) error {
	doc := s.configSvc.Current()

	return s.sessions.Update(desc, func(sess *domain.Session) error {
		cwp := domain.Resolve(sess.CWP, path)
		if !doc.HasPrefix(cwp) {
			return fmt.Errorf("set state %q: %w", cwp, errs.NoEntry)
		}
		sess.CWP = cwp
		if resetQuery {
			sess.ResetCursor()
		}
		return nil
	})
}
