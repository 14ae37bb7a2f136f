package app

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/services"
	"github.com/taxtrack/itax-automation/internal/storage"
)

// cachingSink persists results through the wrapped sink and mirrors
// them into the cache, so the API can answer result lookups without a
// database round trip. Cache failures never block persistence.
type cachingSink struct {
	next   storage.ResultSink
	cache  services.CacheService
	logger *logrus.Logger
}

func newCachingSink(next storage.ResultSink, cache services.CacheService, logger *logrus.Logger) *cachingSink {
	return &cachingSink{next: next, cache: cache, logger: logger}
}

func (s *cachingSink) SaveResult(ctx context.Context, result models.ExtractionResult) error {
	if err := s.next.SaveResult(ctx, result); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode result for cache")
		return nil
	}

	key := services.ResultCacheKey(result.TaskName, result.TaxPIN)
	if err := s.cache.Set(ctx, key, string(payload)); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to cache result")
	}
	return nil
}
