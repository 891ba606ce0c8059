package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	pkgcache "TradeCouncil/pkg/cache"
	"TradeCouncil/pkg/logger"
)

const recommendationKeyPrefix = "recommendation"

// cacheMirrorTTL bounds how long a mirrored recommendation survives in the
// external cache. Stale entries are worse than no entries after a restart.
const cacheMirrorTTL = 24 * time.Hour

// MemoryRecommendationStore keeps the latest recommendation per asset in
// process memory. Listing preserves first-seen asset order so dashboards
// render a stable sequence across refreshes.
//
// An optional cache mirror (Redis in production) makes the latest entries
// survive process restarts: writes go to the mirror best-effort, and a
// GetLast miss falls through to it before giving up.
type MemoryRecommendationStore struct {
	mu    sync.RWMutex
	last  map[string]*models.Recommendation
	order []string

	mirror pkgcache.Service
	log    *logger.Logger
}

// StoreOption configures a MemoryRecommendationStore.
type StoreOption func(*MemoryRecommendationStore)

// WithCacheMirror attaches a cache the store mirrors writes into and reads
// through on a miss.
func WithCacheMirror(c pkgcache.Service) StoreOption {
	return func(s *MemoryRecommendationStore) {
		s.mirror = c
	}
}

// WithStoreLogger sets the logger for mirror failures.
func WithStoreLogger(lgr *logger.Logger) StoreOption {
	return func(s *MemoryRecommendationStore) {
		if lgr != nil {
			s.log = lgr
		}
	}
}

// NewMemoryRecommendationStore creates an empty store.
func NewMemoryRecommendationStore(opts ...StoreOption) *MemoryRecommendationStore {
	s := &MemoryRecommendationStore{
		last: make(map[string]*models.Recommendation),
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ drepo.RecommendationStore = (*MemoryRecommendationStore)(nil)

// SetLast records rec as the latest recommendation for its asset,
// overwriting any previous entry. The cache mirror is updated best-effort;
// a mirror failure never fails the write.
func (s *MemoryRecommendationStore) SetLast(ctx context.Context, rec *models.Recommendation) error {
	if rec == nil || rec.Asset == "" {
		return models.ErrInvalidInput
	}

	s.mu.Lock()
	if _, seen := s.last[rec.Asset]; !seen {
		s.order = append(s.order, rec.Asset)
	}
	s.last[rec.Asset] = rec
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirrorWrite(ctx, rec)
	}
	return nil
}

// mirrorWrite stores rec in the external cache as a JSON string. String
// values round-trip through every cache backend.
func (s *MemoryRecommendationStore) mirrorWrite(ctx context.Context, rec *models.Recommendation) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn("recommendation mirror encode failed",
			logger.String("asset", rec.Asset),
			logger.Error(err))
		return
	}

	key := pkgcache.GenerateKey(recommendationKeyPrefix, rec.Asset)
	if err := s.mirror.Set(ctx, key, string(payload), cacheMirrorTTL); err != nil {
		s.log.Warn("recommendation mirror write failed",
			logger.String("asset", rec.Asset),
			logger.Error(err))
	}
}

// GetLast returns the latest recommendation for asset. On a local miss it
// reads through the mirror and warms the in-memory map from there.
func (s *MemoryRecommendationStore) GetLast(ctx context.Context, asset string) (*models.Recommendation, bool) {
	s.mu.RLock()
	rec, ok := s.last[asset]
	s.mu.RUnlock()
	if ok {
		return rec, true
	}

	if s.mirror == nil || asset == "" {
		return nil, false
	}

	key := pkgcache.GenerateKey(recommendationKeyPrefix, asset)
	var raw string
	if err := s.mirror.Get(ctx, key, &raw); err != nil {
		return nil, false
	}

	var cached models.Recommendation
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || cached.Asset == "" {
		return nil, false
	}

	s.mu.Lock()
	if _, seen := s.last[cached.Asset]; !seen {
		s.order = append(s.order, cached.Asset)
	}
	s.last[cached.Asset] = &cached
	s.mu.Unlock()

	return &cached, true
}

// All returns the latest recommendation for every asset in first-seen order.
func (s *MemoryRecommendationStore) All(ctx context.Context) []*models.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Recommendation, 0, len(s.order))
	for _, asset := range s.order {
		if rec, ok := s.last[asset]; ok {
			out = append(out, rec)
		}
	}
	return out
}
