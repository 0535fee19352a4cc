// Package cache defines the read-through key-value store used by the
// planner and the key layout shared by every writer.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/metrics"
	"github.com/neu-planner/backend/pkg/logger"
)

var ErrMiss = errors.New("cache miss")

// Store is the minimal contract of the backing key-value store.
// Get returns ErrMiss for absent or expired keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Deleter is implemented by stores that support explicit eviction.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Cleaner is implemented by stores that can evict keys about to expire.
type Cleaner interface {
	Cleanup(ctx context.Context, prefixes []string, minTTL time.Duration) (int, error)
}

const (
	PrefixTerms          = "terms:"
	PrefixSubjects       = "subjects:"
	PrefixSubjectCourses = "subject_courses:"
	PrefixCatalog        = "catalog:"
	PrefixPlan           = "plan:"
	PrefixRequirements   = "requirements:"
	PrefixDescription    = "course_desc:"
)

// Prefixes lists every key family written by this service.
var Prefixes = []string{
	PrefixTerms, PrefixSubjects, PrefixSubjectCourses, PrefixCatalog,
	PrefixPlan, PrefixRequirements, PrefixDescription,
}

func TermsKey() string { return PrefixTerms + "list" }

func SubjectsKey(term string) string { return PrefixSubjects + term }

func SubjectCoursesKey(term, subject string) string {
	return PrefixSubjectCourses + term + ":" + strings.ToUpper(subject)
}

func CatalogKey(term, subjectsHash string) string {
	return PrefixCatalog + term + ":" + subjectsHash
}

func RequirementsKey(major string) string { return PrefixRequirements + major }

func DescriptionKey(term, crn string) string { return PrefixDescription + term + ":" + crn }

// PlanKey is the fingerprint of a planning request.
func PlanKey(major, concentration string, years int, completedHash, interestHash string) string {
	return fmt.Sprintf("%s%s:%s:%d:%s:%s", PrefixPlan, major, concentration, years, completedHash, interestHash)
}

// GetJSON decodes the value at key into dst. It reports false on a miss.
func GetJSON(ctx context.Context, s Store, cacheType, key string, dst any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s cache: %w", cacheType, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, nil
	}

	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if err := s.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	logger.Debug("Cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}
