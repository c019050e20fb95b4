package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/ccsd.net/internal/core/ports/secondary"
	"gitlab.com/ccsd.net/internal/domain"
)

var _ secondary.ConfigRepository = (*ConfigRepository)(nil)

// ConfigRepository keeps committed versions in process memory
type ConfigRepository struct {
	mu       sync.RWMutex
	versions map[int64]*domain.ConfigVersion
	docs     map[int64]*domain.Document
}

func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{
		versions: make(map[int64]*domain.ConfigVersion),
		docs:     make(map[int64]*domain.Document),
	}
}

func (r *ConfigRepository) LoadLatest(ctx context.Context) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Document
	for _, doc := range r.docs {
		if latest == nil || doc.Version > latest.Version {
			latest = doc
		}
	}
	return latest, nil
}

func (r *ConfigRepository) SaveVersion(ctx context.Context, doc *domain.Document, txnID uuid.UUID) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs[doc.Version] = doc
	r.versions[doc.Version] = &domain.ConfigVersion{
		Version:     doc.Version,
		TxnID:       txnID,
		Document:    raw,
		CommittedAt: time.Now(),
	}
	return nil
}

func (r *ConfigRepository) ListVersions(ctx context.Context, limit int) ([]*domain.ConfigVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ConfigVersion, 0, len(r.versions))
	for _, v := range r.versions {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
