package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/internal/domain/service"
	"TradeCouncil/pkg/cache"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) GetMarketData(ctx context.Context, asset string, tf drepo.Timeframe) (*models.MarketData, error) {
	args := m.Called(asset, tf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketData), args.Error(1)
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, rec *models.Recommendation) error {
	return m.Called(rec).Error(0)
}

func (m *publisherMock) Close() error { return nil }

type historyMock struct {
	mock.Mock
}

func (m *historyMock) Init(ctx context.Context) error { return m.Called().Error(0) }

func (m *historyMock) Insert(ctx context.Context, rec *models.Recommendation) error {
	return m.Called(rec).Error(0)
}

func (m *historyMock) Recent(ctx context.Context, asset string, limit int) ([]*models.Recommendation, error) {
	args := m.Called(asset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Recommendation), args.Error(1)
}

func (m *historyMock) Health(ctx context.Context) error { return m.Called().Error(0) }

func (m *historyMock) Close() error { return nil }

// recStoreFake is an in-memory RecommendationStore.
type recStoreFake struct {
	mu    sync.Mutex
	recs  map[string]*models.Recommendation
	order []string
}

func newRecStoreFake() *recStoreFake {
	return &recStoreFake{recs: make(map[string]*models.Recommendation)}
}

func (s *recStoreFake) SetLast(ctx context.Context, rec *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.Asset]; !ok {
		s.order = append(s.order, rec.Asset)
	}
	s.recs[rec.Asset] = rec
	return nil
}

func (s *recStoreFake) GetLast(ctx context.Context, asset string) (*models.Recommendation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[asset]
	return rec, ok
}

func (s *recStoreFake) All(ctx context.Context) []*models.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Recommendation, 0, len(s.order))
	for _, asset := range s.order {
		out = append(out, s.recs[asset])
	}
	return out
}

// metricsStub counts recorded errors and ignores the rest.
type metricsStub struct {
	mu     sync.Mutex
	errors map[string]int
}

func newMetricsStub() *metricsStub {
	return &metricsStub{errors: make(map[string]int)}
}

func (m *metricsStub) RecordAnalysis(asset string, signal string) {}

func (m *metricsStub) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *metricsStub) RecordLastPrice(asset string, price float64) {}

func (m *metricsStub) RecordLatency(op string, seconds float64) {}

func (m *metricsStub) RecordConfidence(asset string, confidence float64) {}

func (m *metricsStub) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// queueFake captures enqueued messages.
type queueFake struct {
	mu        sync.Mutex
	published []queuedMessage
	err       error
}

type queuedMessage struct {
	msgType string
	payload interface{}
}

func (q *queueFake) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, queuedMessage{msgType: msgType, payload: payload})
	return nil
}

func (q *queueFake) messages() []queuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queuedMessage, len(q.published))
	copy(out, q.published)
	return out
}

// scriptedStrategy returns a fixed verdict and can record its execution
// order into a shared trace.
type scriptedStrategy struct {
	key        models.StrategyKey
	signal     models.Signal
	confidence float64
	err        error
	panics     bool

	traceMu *sync.Mutex
	trace   *[]models.StrategyKey
}

func (s *scriptedStrategy) Key() models.StrategyKey { return s.key }

func (s *scriptedStrategy) Evaluate(ctx context.Context, data *models.MarketData, params map[string]float64) (service.Verdict, error) {
	if s.trace != nil {
		s.traceMu.Lock()
		*s.trace = append(*s.trace, s.key)
		s.traceMu.Unlock()
	}
	if s.panics {
		panic("scripted panic")
	}
	if s.err != nil {
		return service.Verdict{}, s.err
	}
	return service.Verdict{Signal: s.signal, Confidence: s.confidence}, nil
}

// cacheFake implements just enough of cache.Service for snapshot tests.
type cacheFake struct {
	mu     sync.Mutex
	values map[string]string
}

func newCacheFake() *cacheFake {
	return &cacheFake{values: make(map[string]string)}
}

func (c *cacheFake) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := value.(string); ok {
		c.values[key] = s
	}
	return nil
}

func (c *cacheFake) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	if p, ok := dest.(*string); ok {
		*p = v
	}
	return nil
}

func (c *cacheFake) Delete(ctx context.Context, keys ...string) error { return nil }

func (c *cacheFake) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func (c *cacheFake) Exists(ctx context.Context, keys ...string) (bool, error) { return false, nil }

func (c *cacheFake) Increment(ctx context.Context, key string) (int64, error) { return 0, nil }

func (c *cacheFake) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return false, nil
}

func (c *cacheFake) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	return nil
}

func (c *cacheFake) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (c *cacheFake) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (c *cacheFake) Unlock(ctx context.Context, key string) error { return nil }
