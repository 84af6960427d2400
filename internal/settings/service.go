package settings

import (
	"context"
	"encoding/json"

	"sales_portal_backend/platform/apperr"
	"sales_portal_backend/platform/logger"
)

// Store is the persistence surface the service needs.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Provider is what the rest of the engine consumes: every component re-reads
// configuration per use instead of holding a long-lived copy.
type Provider interface {
	// Get may serve from the short-TTL cache.
	Get(ctx context.Context) (Settings, error)
	// GetFresh always reads the repository. The sweep uses this so an admin
	// change is visible to the very next tick.
	GetFresh(ctx context.Context) (Settings, error)
}

// Service mediates reads through the cache and applies validated patches.
type Service struct {
	store Store
	cache *Cache
	log   *logger.Logger
}

func NewService(store Store, cache *Cache, log *logger.Logger) *Service {
	return &Service{store: store, cache: cache, log: log}
}

func (s *Service) Get(ctx context.Context) (Settings, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx); ok {
			return cached, nil
		}
	}

	current, err := s.store.Get(ctx)
	if err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "load settings", err)
	}
	if s.cache != nil {
		s.cache.Put(ctx, current)
	}
	return current, nil
}

func (s *Service) GetFresh(ctx context.Context) (Settings, error) {
	current, err := s.store.Get(ctx)
	if err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "load settings", err)
	}
	return current, nil
}

// Patch applies one dotted-path update. Validation happens on the fully
// patched struct before anything is written, so a rejected patch leaves the
// stored configuration untouched.
func (s *Service) Patch(ctx context.Context, path string, value json.RawMessage) (Settings, error) {
	current, err := s.GetFresh(ctx)
	if err != nil {
		return Settings{}, err
	}

	next, err := ApplyPatch(current, path, value)
	if err != nil {
		return Settings{}, err
	}

	if err := s.store.Save(ctx, next); err != nil {
		return Settings{}, apperr.Wrap(apperr.KindInternal, "save settings", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	s.log.Info("automation settings patched", "path", path)
	return next, nil
}

var _ Provider = (*Service)(nil)
