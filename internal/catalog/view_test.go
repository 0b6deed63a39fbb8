package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

type resultSink struct {
	mu      sync.Mutex
	results []Result
}

func (s *resultSink) add(r Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
}

func (s *resultSink) all() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

func TestViewDebouncesRapidChanges(t *testing.T) {
	querier := &memoryQuerier{courses: sampleCourses()}
	engine := NewEngine(querier, nil, nil)
	sink := &resultSink{}

	view := NewView(context.Background(), engine, ViewOptions{Delay: 50 * time.Millisecond, OnResult: sink.add})
	defer view.Close()

	view.Update(models.FilterPatch{SearchTerm: strPtr("c")})
	view.Update(models.FilterPatch{SearchTerm: strPtr("cs")})
	view.Update(models.FilterPatch{SearchTerm: strPtr("CS10")})

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	results := sink.all()
	require.Len(t, results, 1)
	assert.EqualValues(t, 1, querier.calls.Load())
	assert.Equal(t, "CS10", results[0].State.SearchTerm)
	assert.Equal(t, []string{"c1"}, ids(results[0].Courses))
	assert.Equal(t, StatusSuccess, view.Last().Status)
}

func TestViewNonSearchChangesAreDebouncedToo(t *testing.T) {
	querier := &memoryQuerier{courses: sampleCourses()}
	engine := NewEngine(querier, nil, nil)
	sink := &resultSink{}

	view := NewView(context.Background(), engine, ViewOptions{Delay: 40 * time.Millisecond, OnResult: sink.add})
	defer view.Close()

	view.Update(models.FilterPatch{HasVideo: boolPtr(true)})
	view.Update(models.FilterPatch{BasicFilter: strPtr("free")})

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	state := sink.all()[0].State
	assert.True(t, state.HasVideo)
	assert.Equal(t, models.BasicFree, state.BasicFilter)
}

type blockingQuerier struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingQuerier) QueryCatalog(ctx context.Context, query models.CatalogQuery) ([]models.CatalogCourse, error) {
	b.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return FilterQuery(sampleCourses(), query), nil
	}
}

func TestViewDropsSupersededEvaluation(t *testing.T) {
	querier := &blockingQuerier{release: make(chan struct{}), started: make(chan struct{}, 4)}
	observer := &countingObserver{}
	engine := NewEngine(querier, nil, observer)
	sink := &resultSink{}

	view := NewView(context.Background(), engine, ViewOptions{Delay: 10 * time.Millisecond, OnResult: sink.add})
	defer view.Close()

	select {
	case <-querier.started:
	case <-time.After(time.Second):
		t.Fatal("first evaluation never started")
	}

	view.Update(models.FilterPatch{BasicFilter: strPtr("paid")})

	select {
	case <-querier.started:
	case <-time.After(time.Second):
		t.Fatal("second evaluation never started")
	}
	close(querier.release)

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.BasicPaid, sink.all()[0].State.BasicFilter)
	require.Eventually(t, func() bool {
		observer.mu.Lock()
		defer observer.mu.Unlock()
		return observer.stale == 1
	}, time.Second, 5*time.Millisecond)
}

func TestViewCloseStopsPendingEvaluation(t *testing.T) {
	querier := &memoryQuerier{courses: sampleCourses()}
	engine := NewEngine(querier, nil, nil)

	view := NewView(context.Background(), engine, ViewOptions{Delay: 30 * time.Millisecond})
	view.Close()
	view.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, querier.calls.Load())
	assert.True(t, view.Closed())
}

func TestSchedulerSupersedesPendingToken(t *testing.T) {
	scheduler := NewScheduler(20 * time.Millisecond)
	var mu sync.Mutex
	ran := []uint64{}

	first := scheduler.Schedule(context.Background(), func(_ context.Context, token Token) {
		mu.Lock()
		ran = append(ran, token.Generation())
		mu.Unlock()
	})
	second := scheduler.Schedule(context.Background(), func(_ context.Context, token Token) {
		mu.Lock()
		ran = append(ran, token.Generation())
		mu.Unlock()
	})

	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.True(t, scheduler.Pending())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []uint64{second.Generation()}, ran)
	mu.Unlock()
	assert.False(t, scheduler.Pending())
}
