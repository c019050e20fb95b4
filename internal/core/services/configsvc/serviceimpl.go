package configsvc

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/core/ports/primary"
	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/telemetry"
)

var _ IConfigService = &ConfigService{}

// ConfigService implements IConfigService on top of a ConfigRepository
type ConfigService struct {
	repo     secondary.ConfigRepository
	logger   primary.Logger
	seedFile string

	mu      sync.RWMutex
	current *domain.Document
}

// NewConfigService creates the service with an empty document until Load is called
func NewConfigService(repo secondary.ConfigRepository, seedFile string, logger primary.Logger) *ConfigService {
	return &ConfigService{
		repo:     repo,
		logger:   logger,
		seedFile: seedFile,
		current:  domain.EmptyDocument(),
	}
}

// Current returns the committed document
func (s *ConfigService) Current() *domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Load restores the newest stored document, seeding the store from the seed file when empty
func (s *ConfigService) Load(ctx context.Context) error {
	doc, err := s.repo.LoadLatest(ctx)
	if err != nil {
		s.logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if doc == nil {
		if s.seedFile == "" {
			s.logger.Warn("No stored configuration and no seed file, starting empty")
			return nil
		}
		doc, err = readSeed(s.seedFile)
		if err != nil {
			return err
		}
		if err := s.repo.SaveVersion(ctx, doc, uuid.Nil); err != nil {
			return fmt.Errorf("failed to store seed configuration: %w", err)
		}
		s.logger.Info("Seeded configuration", "file", s.seedFile, "version", doc.Version)
	}

	s.swap(doc)
	s.logger.Info("Configuration loaded", "version", doc.Version, "entries", doc.Len())
	return nil
}

func readSeed(file string) (*domain.Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed configuration: %w", err)
	}
	doc, err := domain.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed configuration %s: %w", file, err)
	}
	return doc, nil
}

// Commit persists doc and makes it current
func (s *ConfigService) Commit(ctx context.Context, doc *domain.Document, txnID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Version <= s.current.Version {
		return fmt.Errorf("commit version %d over %d: %w", doc.Version, s.current.Version, errs.StaleVersion)
	}

	if err := s.repo.SaveVersion(ctx, doc, txnID); err != nil {
		s.logger.Error("Failed to persist configuration", "version", doc.Version, "error", err)
		return fmt.Errorf("failed to persist configuration: %w", err)
	}

	s.current = doc
	telemetry.ConfigVersion.Set(float64(doc.Version))
	s.logger.Info("Configuration committed", "version", doc.Version, "txn", txnID)
	return nil
}

// History lists recently committed versions
func (s *ConfigService) History(ctx context.Context, limit int) ([]*domain.ConfigVersion, error) {
	versions, err := s.repo.ListVersions(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list configuration history", "error", err)
		return nil, fmt.Errorf("failed to list configuration history: %w", err)
	}
	return versions, nil
}

func (s *ConfigService) swap(doc *domain.Document) {
	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()
	telemetry.ConfigVersion.Set(float64(doc.Version))
}
