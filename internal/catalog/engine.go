package catalog

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/pkg/tracing"
)

// Querier runs the stage-1 query against the course store.
type Querier interface {
	QueryCatalog(ctx context.Context, query models.CatalogQuery) ([]models.CatalogCourse, error)
}

// Observer receives evaluation telemetry. MetricsService implements it.
type Observer interface {
	ObserveCatalogEvaluation(status string, duration time.Duration)
	IncCatalogStaleDrop()
}

// Status describes the state of an evaluation as shown to the user.
type Status string

// Evaluation statuses. StatusCancelled marks a run superseded by a newer change.
const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Result is the outcome of one pipeline run.
type Result struct {
	State       models.FilterState     `json:"state"`
	Courses     []models.CatalogCourse `json:"courses"`
	Creators    []string               `json:"creators"`
	Status      Status                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Generation  uint64                 `json:"generation"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// Engine evaluates FilterStates against a Querier.
type Engine struct {
	querier  Querier
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// NewEngine constructs an Engine. logger and observer may be nil.
func NewEngine(querier Querier, logger *zap.Logger, observer Observer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{querier: querier, logger: logger, observer: observer, now: time.Now}
}

// Evaluate runs the full pipeline. A query failure yields an empty result with
// StatusError; it is logged and never returned as an error. A cancelled query
// yields an empty result with StatusCancelled.
func (e *Engine) Evaluate(ctx context.Context, state models.FilterState) Result {
	ctx, span := tracing.Tracer().Start(ctx, "catalog.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("catalog.basic_filter", string(state.BasicFilter)),
		attribute.String("catalog.price_range", string(state.PriceRange)),
		attribute.Bool("catalog.search", state.SearchTerm != ""),
	)

	start := e.now()
	result := Result{
		State:    state,
		Courses:  []models.CatalogCourse{},
		Creators: []string{},
	}

	stage1, err := e.querier.QueryCatalog(ctx, Stage1Query(state))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.logger.Debug("catalog evaluation cancelled")
			span.AddEvent("cancelled")
			result.Status = StatusCancelled
			e.finish(&result, start)
			return result
		}
		e.logger.Error("catalog query failed", zap.Error(err), zap.String("search", state.SearchTerm))
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog query failed")
		result.Status = StatusError
		result.Error = "failed to load courses"
		e.finish(&result, start)
		return result
	}

	result.Creators = DistinctCreators(stage1)
	result.Courses = Apply(stage1, state)
	result.Status = StatusSuccess
	span.SetAttributes(attribute.Int("catalog.results", len(result.Courses)))
	e.finish(&result, start)
	return result
}

func (e *Engine) finish(result *Result, start time.Time) {
	result.EvaluatedAt = e.now()
	if e.observer != nil {
		e.observer.ObserveCatalogEvaluation(string(result.Status), result.EvaluatedAt.Sub(start))
	}
}

func (e *Engine) staleDropped() {
	if e.observer != nil {
		e.observer.IncCatalogStaleDrop()
	}
}
