package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"argus/core"
	"argus/correlate"
	"argus/metrics"
	"argus/search"
	"argus/util/goroutine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBatchWorkers is used when no worker count is configured
const DefaultBatchWorkers = 4

// CorrelationRequest asks to correlate the records matching PrimaryQuery
// with those matching each of SecondaryQueries. Entity types are inferred
// from the queries unless given explicitly.
type CorrelationRequest struct {
	PrimaryQuery      string            `json:"primary_query" validate:"required"`
	PrimaryEntity     core.EntityType   `json:"primary_entity,omitempty"`
	SecondaryQueries  []string          `json:"secondary_queries" validate:"required,min=1,dive,required"`
	SecondaryEntities []core.EntityType `json:"secondary_entities,omitempty"`
	Params            correlate.Params  `json:"correlation_params" validate:"-"`
	Limit             int               `json:"limit" validate:"required,min=1,max=10000"`
}

// CorrelationResponse is the outcome of one correlation request
type CorrelationResponse struct {
	RequestID         string             `json:"request_id"`
	PrimaryEntity     core.EntityType    `json:"primary_entity"`
	SecondaryEntities []core.EntityType  `json:"secondary_entities"`
	CorrelatedResults []correlate.Result `json:"correlated_results"`
	Stats             correlate.Stats    `json:"stats"`
	Truncated         bool               `json:"truncated"`
	// TimedOut marks a partial response cut short by the time budget
	TimedOut   bool  `json:"timed_out"`
	DurationMS int64 `json:"duration_ms"`
}

// BatchItem is the outcome of one request of a batch, at the request's index
type BatchItem struct {
	Index    int                  `json:"index"`
	Response *CorrelationResponse `json:"response,omitempty"`
	Err      error                `json:"-"`
	Error    string               `json:"error,omitempty"`
}

// CorrelationService resolves correlation requests into engine passes
type CorrelationService struct {
	queries *QueryService
	source  EntitySource
	engine  *correlate.Engine
	budget  time.Duration
	workers int
	logger  *zap.SugaredLogger
}

// CorrelationOption configures a CorrelationService
type CorrelationOption func(*CorrelationService)

// WithBudget sets the time budget of each correlation pass
func WithBudget(d time.Duration) CorrelationOption {
	return func(s *CorrelationService) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithBatchWorkers sets the number of concurrent batch workers
func WithBatchWorkers(n int) CorrelationOption {
	return func(s *CorrelationService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewCorrelationService creates a correlation service
func NewCorrelationService(queries *QueryService, source EntitySource, engine *correlate.Engine, logger *zap.SugaredLogger, opts ...CorrelationOption) *CorrelationService {
	if queries == nil {
		panic("query service is required")
	}
	if source == nil {
		panic("entity source is required")
	}
	if engine == nil {
		panic("engine is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &CorrelationService{
		queries: queries,
		source:  source,
		engine:  engine,
		budget:  correlate.DefaultBudget,
		workers: DefaultBatchWorkers,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Correlate runs one request. When the time budget runs out the partial
// response is returned together with the *correlate.TimeoutError.
func (s *CorrelationService) Correlate(ctx context.Context, req CorrelationRequest) (*CorrelationResponse, error) {
	start := time.Now()
	requestID := uuid.New().String()

	if err := checkRequest(req); err != nil {
		return nil, err
	}
	if n := len(req.SecondaryEntities); n > 0 && n != len(req.SecondaryQueries) {
		return nil, fmt.Errorf("%w: %d secondary entities given for %d secondary queries",
			ErrInvalidRequest, n, len(req.SecondaryQueries))
	}

	primaryTree, primaryType, err := s.queries.Compile(req.PrimaryQuery, req.PrimaryEntity)
	if err != nil {
		return nil, fmt.Errorf("primary query: %w", err)
	}

	type compiled struct {
		tree search.Node
		et   core.EntityType
	}
	secondaries := make([]compiled, len(req.SecondaryQueries))
	for i, q := range req.SecondaryQueries {
		var et core.EntityType
		if len(req.SecondaryEntities) > 0 {
			et = req.SecondaryEntities[i]
		}
		tree, et, err := s.queries.Compile(q, et)
		if err != nil {
			return nil, fmt.Errorf("secondary query %d: %w", i+1, err)
		}
		secondaries[i] = compiled{tree: tree, et: et}
	}

	in := correlate.Input{Params: req.Params, Limit: req.Limit, Budget: s.budget}
	in.Primary.EntityType = primaryType
	for _, sec := range secondaries {
		in.Secondaries = append(in.Secondaries, correlate.RecordSet{EntityType: sec.et})
	}

	// Fail on incompatible fields before fetching anything
	if _, err := s.engine.CheckConfig(in); err != nil {
		return nil, err
	}

	if in.Primary.Records, err = s.matching(ctx, primaryTree, primaryType); err != nil {
		return nil, err
	}
	for i, sec := range secondaries {
		if in.Secondaries[i].Records, err = s.matching(ctx, sec.tree, sec.et); err != nil {
			return nil, err
		}
	}

	out, err := s.engine.Correlate(ctx, in)
	if out == nil {
		return nil, err
	}

	resp := &CorrelationResponse{
		RequestID:         requestID,
		PrimaryEntity:     primaryType,
		SecondaryEntities: make([]core.EntityType, len(secondaries)),
		CorrelatedResults: out.Results,
		Stats:             out.Stats,
		Truncated:         out.Truncated,
		TimedOut:          out.TimedOut,
		DurationMS:        time.Since(start).Milliseconds(),
	}
	for i, sec := range secondaries {
		resp.SecondaryEntities[i] = sec.et
	}

	if err != nil {
		s.logger.Warnw("Correlation returned a partial response",
			"request_id", requestID,
			"correlated", resp.Stats.CorrelatedCount,
			"error", err)
		return resp, err
	}

	s.logger.Infow("Correlation complete",
		"request_id", requestID,
		"primary_entity", primaryType,
		"secondary_entities", resp.SecondaryEntities,
		"results", len(resp.CorrelatedResults),
		"duration_ms", resp.DurationMS)
	return resp, nil
}

// matching fetches the collection of et and keeps the records matching tree
func (s *CorrelationService) matching(ctx context.Context, tree search.Node, et core.EntityType) ([]core.Record, error) {
	records, err := s.source.Fetch(ctx, et)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", et, err)
	}
	return search.NewEvaluator(s.queries.validator.Mapper(), et).Filter(tree, records, 0), nil
}

// CorrelateBatch runs independent requests on a bounded worker pool. Items
// come back in request order; a failing or panicking request only fails its
// own item.
func (s *CorrelationService) CorrelateBatch(ctx context.Context, reqs []CorrelationRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))
	if len(reqs) == 0 {
		return items
	}

	workers := s.workers
	if workers > len(reqs) {
		workers = len(reqs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range jobs {
				items[i] = s.runBatchItem(ctx, worker, i, reqs[i])
			}
		}(w)
	}

feed:
	for i := range reqs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(reqs); j++ {
				items[j] = BatchItem{Index: j, Err: ctx.Err(), Error: ctx.Err().Error()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	s.logger.Infow("Batch correlation complete", "requests", len(reqs), "failed", failed, "workers", workers)
	return items
}

func (s *CorrelationService) runBatchItem(ctx context.Context, worker, index int, req CorrelationRequest) (item BatchItem) {
	item.Index = index
	defer goroutine.RecoverTo(fmt.Sprintf("correlation-batch-%d", worker), s.logger, func(pe *goroutine.PanicError) {
		metrics.BatchPanics.Inc()
		item.Response = nil
		item.Err = pe
		item.Error = pe.Error()
	})

	resp, err := s.Correlate(ctx, req)
	item.Response = resp
	if err != nil {
		item.Err = err
		item.Error = err.Error()
	}
	return item
}

// IsPartial reports whether err still came with a usable partial response
func IsPartial(err error) bool {
	return errors.Is(err, correlate.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
