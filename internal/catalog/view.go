package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

// View is one catalog screen: it owns a FilterState and re-evaluates it through a
// debounced Scheduler whenever the state changes. Results from superseded
// evaluations are dropped.
type View struct {
	engine    *Engine
	scheduler *Scheduler
	base      context.Context
	onResult  func(Result)

	mu        sync.Mutex
	state     models.FilterState
	last      Result
	closed    bool
	touchedAt time.Time
}

// ViewOptions configures a View.
type ViewOptions struct {
	Delay    time.Duration
	Initial  *models.FilterState
	OnResult func(Result)
}

// NewView creates a View and schedules its first evaluation. ctx bounds every
// evaluation the view runs.
func NewView(ctx context.Context, engine *Engine, opts ViewOptions) *View {
	state := models.DefaultFilterState()
	if opts.Initial != nil {
		state = *opts.Initial
	}
	v := &View{
		engine:    engine,
		scheduler: NewScheduler(opts.Delay),
		base:      ctx,
		onResult:  opts.OnResult,
		state:     state,
		last:      Result{State: state, Status: StatusIdle, Courses: []models.CatalogCourse{}, Creators: []string{}},
		touchedAt: time.Now(),
	}
	v.mu.Lock()
	v.scheduleLocked()
	v.mu.Unlock()
	return v
}

// Update applies patch and schedules a re-evaluation. It returns the new state.
func (v *View) Update(patch models.FilterPatch) models.FilterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = patch.Apply(v.state)
	v.touchedAt = time.Now()
	if !v.closed {
		v.scheduleLocked()
	}
	return v.state
}

// Refresh re-evaluates the current state.
func (v *View) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.touchedAt = time.Now()
	if !v.closed {
		v.scheduleLocked()
	}
}

// State returns the current FilterState.
func (v *View) State() models.FilterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Last returns the most recently applied result. While an evaluation is pending
// its Status is StatusLoading.
func (v *View) Last() Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// TouchedAt returns the time of the last state change.
func (v *View) TouchedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.touchedAt
}

// Close stops pending and running evaluations. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.scheduler.Stop()
}

// Closed reports whether Close has been called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) scheduleLocked() {
	state := v.state
	v.last.Status = StatusLoading
	v.scheduler.Schedule(v.base, func(ctx context.Context, token Token) {
		result := v.engine.Evaluate(ctx, state)
		result.Generation = token.Generation()
		v.apply(result, token)
	})
}

func (v *View) apply(result Result, token Token) {
	v.mu.Lock()
	if v.closed || !token.Current() {
		v.mu.Unlock()
		v.engine.staleDropped()
		return
	}
	v.last = result
	callback := v.onResult
	v.mu.Unlock()

	if callback != nil {
		callback(result)
	}
}
