package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"argus/core"
	"argus/metrics"
	"argus/search"

	"go.uber.org/zap"
)

// DefaultSearchLimit is the CLI default for --limit
const DefaultSearchLimit = 100

// SearchRequest is one query against one entity collection. An empty
// EntityType is inferred from the query fields. The optional filters are
// ANDed with the query and require the entity type to carry the field they
// test (severity, resolved or timestamp).
type SearchRequest struct {
	Query      string          `json:"query" validate:"required"`
	EntityType core.EntityType `json:"entity_type,omitempty"`
	Limit      int             `json:"limit" validate:"required,min=1,max=10000"`
	// Offset skips that many matches before the page starts
	Offset      int    `json:"offset,omitempty" validate:"min=0"`
	MinSeverity string `json:"min_severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	// IncludeResolved false drops resolved records; nil applies no filter
	IncludeResolved *bool `json:"include_resolved,omitempty"`
	// TimeWindow keeps records newer than now minus the window, e.g. "24h"
	TimeWindow string `json:"time_window,omitempty"`
	// Aggregate counts all matches by the entity's grouping fields
	Aggregate bool `json:"aggregate,omitempty"`
}

// SearchResult holds the records matching a query, in source order
type SearchResult struct {
	EntityType core.EntityType `json:"entity_type"`
	Query      string          `json:"query"`
	Records    []core.Record   `json:"records"`
	Count      int             `json:"count"`
	Offset     int             `json:"offset"`
	// Truncated is set when more records matched than the limit allowed
	Truncated bool `json:"truncated"`
	// Total and Aggregations are only filled for aggregate requests
	Total        int                       `json:"total,omitempty"`
	Aggregations map[string]map[string]int `json:"aggregations,omitempty"`
}

// aggregateFields are the grouping fields per entity type
var aggregateFields = map[core.EntityType][]string{
	core.EntityFlows:       {"protocol", "direction", "blocked"},
	core.EntityAlarms:      {"type", "severity", "resolved"},
	core.EntityRules:       {"action", "status", "disabled"},
	core.EntityDevices:     {"online", "network"},
	core.EntityTargetLists: {"category", "owner"},
}

// QueryOption configures a QueryService
type QueryOption func(*QueryService)

// WithClock sets the time source used by time-window filters
func WithClock(now func() time.Time) QueryOption {
	return func(s *QueryService) {
		if now != nil {
			s.now = now
		}
	}
}

// QueryService validates and runs queries against an EntitySource
type QueryService struct {
	validator *search.Validator
	source    EntitySource
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewQueryService creates a query service. source may be nil when only
// validation is needed.
func NewQueryService(v *search.Validator, source EntitySource, logger *zap.SugaredLogger, opts ...QueryOption) *QueryService {
	if v == nil {
		panic("validator is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &QueryService{validator: v, source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks query against entityType without fetching anything. An
// empty entityType is inferred from the query fields.
func (s *QueryService) Validate(query string, entityType core.EntityType) search.ValidationResponse {
	if entityType == "" {
		if tree, err := s.validator.Prepare(query); err == nil {
			et, err := search.InferEntityType(tree, s.validator.Mapper())
			if err != nil {
				return search.ValidationResponse{Errors: []string{err.Error()}, Suggestions: []string{}}
			}
			entityType = et
		}
	}
	return s.validator.ValidateQuery(query, entityType)
}

// Compile sanitizes, parses and validates query. An empty entityType is
// inferred. The returned error is the first syntax, security or semantic
// problem found.
func (s *QueryService) Compile(query string, entityType core.EntityType) (search.Node, core.EntityType, error) {
	tree, err := s.validator.Prepare(query)
	if err != nil {
		return nil, "", err
	}

	if entityType == "" {
		entityType, err = search.InferEntityType(tree, s.validator.Mapper())
		if err != nil {
			return nil, "", err
		}
	} else if !entityType.IsValid() {
		return nil, "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidRequest, entityType)
	}

	if err := s.validator.Validate(tree, entityType).Err(); err != nil {
		return nil, "", err
	}
	return tree, entityType, nil
}

// Search fetches the entity collection and returns one page of matching
// records
func (s *QueryService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, fmt.Errorf("no entity source configured")
	}

	tree, et, err := s.Compile(req.Query, req.EntityType)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	filtered, err := s.applyFilters(tree, et, req)
	if err != nil {
		return nil, err
	}

	records, err := s.source.Fetch(ctx, et)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", et, err)
	}

	// one extra match detects truncation; aggregates need every match
	want := req.Offset + req.Limit + 1
	if req.Aggregate {
		want = 0
	}

	start := time.Now()
	matches := search.NewEvaluator(s.validator.Mapper(), et).Filter(filtered, records, want)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	result := &SearchResult{EntityType: et, Query: search.Format(tree), Offset: req.Offset}
	if req.Aggregate {
		result.Total = len(matches)
		result.Aggregations = s.aggregate(et, matches)
	}

	page := []core.Record{}
	if req.Offset < len(matches) {
		page = matches[req.Offset:]
	}
	if len(page) > req.Limit {
		page = page[:req.Limit]
		result.Truncated = true
	}
	result.Records = page
	result.Count = len(page)

	s.logger.Debugw("Search complete",
		"entity_type", et,
		"scanned", len(records),
		"matched", result.Count,
		"offset", req.Offset,
		"truncated", result.Truncated)
	return result, nil
}

// applyFilters ANDs the request's optional filters onto tree
func (s *QueryService) applyFilters(tree search.Node, et core.EntityType, req SearchRequest) (search.Node, error) {
	mapper := s.validator.Mapper()
	need := func(field, param string) error {
		if _, ok := mapper.Lookup(field, et); !ok {
			return fmt.Errorf("%w: %s needs a %s field, %s has none", ErrInvalidRequest, param, field, et)
		}
		return nil
	}

	if req.MinSeverity != "" {
		if err := need("severity", "min_severity"); err != nil {
			return nil, err
		}
		tree = &search.And{Left: tree, Right: &search.Numeric{
			Field: "severity",
			Op:    search.OpGte,
			Value: search.Operand{Raw: req.MinSeverity},
		}}
	}

	if req.IncludeResolved != nil && !*req.IncludeResolved {
		if err := need("resolved", "include_resolved"); err != nil {
			return nil, err
		}
		tree = &search.And{Left: tree, Right: &search.Literal{
			Field:   "resolved",
			Values:  []search.Value{{Text: "true"}},
			Negated: true,
		}}
	}

	if req.TimeWindow != "" {
		if err := need("timestamp", "time_window"); err != nil {
			return nil, err
		}
		window, err := core.ParseWindow(req.TimeWindow)
		if err != nil {
			return nil, fmt.Errorf("%w: time_window: %v", ErrInvalidRequest, err)
		}
		since := s.now().Add(-window).UTC()
		tree = &search.And{Left: tree, Right: &search.Numeric{
			Field: "timestamp",
			Op:    search.OpGte,
			Value: search.Operand{Raw: since.Format(time.RFC3339Nano)},
		}}
	}
	return tree, nil
}

// aggregate counts matches per value of each grouping field. Records
// without the field count under "unknown".
func (s *QueryService) aggregate(et core.EntityType, matches []core.Record) map[string]map[string]int {
	mapper := s.validator.Mapper()
	out := make(map[string]map[string]int)
	for _, field := range aggregateFields[et] {
		if _, ok := mapper.Lookup(field, et); !ok {
			continue
		}
		counts := make(map[string]int)
		for _, rec := range matches {
			v, _, ok := mapper.ResolveValue(rec, field, et)
			if !ok {
				counts["unknown"]++
				continue
			}
			for _, elem := range core.Elements(v) {
				counts[strings.ToLower(core.ToString(elem))]++
			}
		}
		out[field] = counts
	}
	return out
}
