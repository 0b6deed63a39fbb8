package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

var errViewNotFound = appErrors.Clone(appErrors.ErrNotFound, "catalog view not found")

// LiveCatalogConfig tunes live catalog views.
type LiveCatalogConfig struct {
	Debounce time.Duration
	IdleTTL  time.Duration
}

// LiveView describes an open view.
type LiveView struct {
	ID     string             `json:"id"`
	State  models.FilterState `json:"state"`
	Result catalog.Result     `json:"result"`
}

type liveView struct {
	id   string
	view *catalog.View

	mu          sync.Mutex
	subscribers map[int]chan catalog.Result
	nextID      int
}

// LiveCatalogService keeps long-lived catalog views that re-evaluate on every
// filter change and push results to subscribers.
type LiveCatalogService struct {
	engine  *catalog.Engine
	config  LiveCatalogConfig
	metrics *MetricsService
	logger  *zap.Logger
	base    context.Context
	cancel  context.CancelFunc
	now     func() time.Time

	mu    sync.RWMutex
	views map[string]*liveView
}

// NewLiveCatalogService constructs the service. Call Shutdown to release every view.
func NewLiveCatalogService(engine *catalog.Engine, config LiveCatalogConfig, metrics *MetricsService, logger *zap.Logger) *LiveCatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 15 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &LiveCatalogService{
		engine:  engine,
		config:  config,
		metrics: metrics,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		now:     time.Now,
		views:   make(map[string]*liveView),
	}
}

// Evaluate runs a one-shot pipeline evaluation without debounce.
func (s *LiveCatalogService) Evaluate(ctx context.Context, state models.FilterState) catalog.Result {
	return s.engine.Evaluate(ctx, state)
}

// Open creates a view and schedules its first evaluation.
func (s *LiveCatalogService) Open(initial *models.FilterState) LiveView {
	lv := &liveView{id: uuid.NewString(), subscribers: make(map[int]chan catalog.Result)}
	lv.view = catalog.NewView(s.base, s.engine, catalog.ViewOptions{
		Delay:    s.config.Debounce,
		Initial:  initial,
		OnResult: lv.publish,
	})

	s.mu.Lock()
	s.views[lv.id] = lv
	count := len(s.views)
	s.mu.Unlock()
	s.metrics.SetLiveViews(count)

	s.logger.Debug("catalog view opened", zap.String("view_id", lv.id))
	return LiveView{ID: lv.id, State: lv.view.State(), Result: lv.view.Last()}
}

// Update applies patch to the view and returns the resulting state.
func (s *LiveCatalogService) Update(id string, patch models.FilterPatch) (LiveView, error) {
	lv, err := s.lookup(id)
	if err != nil {
		return LiveView{}, err
	}
	state := lv.view.Update(patch)
	return LiveView{ID: id, State: state, Result: lv.view.Last()}, nil
}

// Get returns the view's state and last applied result.
func (s *LiveCatalogService) Get(id string) (LiveView, error) {
	lv, err := s.lookup(id)
	if err != nil {
		return LiveView{}, err
	}
	return LiveView{ID: id, State: lv.view.State(), Result: lv.view.Last()}, nil
}

// Subscribe returns a channel receiving the view's results, starting with the
// last applied one. Slow consumers only see the newest result.
func (s *LiveCatalogService) Subscribe(id string) (<-chan catalog.Result, func(), error) {
	lv, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan catalog.Result, 1)
	lv.mu.Lock()
	if lv.view.Closed() {
		lv.mu.Unlock()
		return nil, nil, errViewNotFound
	}
	last := lv.view.Last()
	subID := lv.nextID
	lv.nextID++
	lv.subscribers[subID] = ch
	if last.Status == catalog.StatusSuccess || last.Status == catalog.StatusError {
		offer(ch, last)
	}
	lv.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			lv.mu.Lock()
			if _, ok := lv.subscribers[subID]; ok {
				delete(lv.subscribers, subID)
				close(ch)
			}
			lv.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Close closes the view and ends its subscriptions.
func (s *LiveCatalogService) Close(id string) error {
	s.mu.Lock()
	lv, ok := s.views[id]
	if ok {
		delete(s.views, id)
	}
	count := len(s.views)
	s.mu.Unlock()
	if !ok {
		return errViewNotFound
	}
	s.metrics.SetLiveViews(count)
	lv.close()
	s.logger.Debug("catalog view closed", zap.String("view_id", id))
	return nil
}

// Sweep closes views idle for longer than the configured TTL that have no
// subscribers. It returns the number of views closed.
func (s *LiveCatalogService) Sweep() int {
	cutoff := s.now().Add(-s.config.IdleTTL)

	s.mu.RLock()
	var idle []string
	for id, lv := range s.views {
		if lv.view.TouchedAt().Before(cutoff) && lv.subscriberCount() == 0 {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if s.Close(id) == nil {
			closed++
		}
	}
	if closed > 0 {
		s.logger.Info("idle catalog views swept", zap.Int("closed", closed))
	}
	return closed
}

// RunSweeper sweeps idle views every interval until ctx is done.
func (s *LiveCatalogService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Count returns the number of open views.
func (s *LiveCatalogService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

// Shutdown closes every view and cancels in-flight evaluations.
func (s *LiveCatalogService) Shutdown() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*liveView)
	s.mu.Unlock()

	for _, lv := range views {
		lv.close()
	}
	s.cancel()
	s.metrics.SetLiveViews(0)
}

func (s *LiveCatalogService) lookup(id string) (*liveView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lv, ok := s.views[id]
	if !ok {
		return nil, errViewNotFound
	}
	return lv, nil
}

func (lv *liveView) publish(result catalog.Result) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	for _, ch := range lv.subscribers {
		offer(ch, result)
	}
}

func (lv *liveView) subscriberCount() int {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return len(lv.subscribers)
}

func (lv *liveView) close() {
	lv.view.Close()
	lv.mu.Lock()
	for id, ch := range lv.subscribers {
		delete(lv.subscribers, id)
		close(ch)
	}
	lv.mu.Unlock()
}

// offer replaces any unread result in ch with result.
func offer(ch chan catalog.Result, result catalog.Result) {
	for {
		select {
		case ch <- result:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
