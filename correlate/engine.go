package correlate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

const (
	// DefaultBudget is the wall-clock budget of one correlation pass
	DefaultBudget = 10 * time.Second
	// DefaultCheckEvery is the number of secondary records between budget checks
	DefaultCheckEvery = 256
)

// timestampField is the logical field used by temporal windows
const timestampField = "timestamp"

// RecordSet is one entity collection taking part in a correlation
type RecordSet struct {
	EntityType core.EntityType
	Records    []core.Record
}

// Input is one correlation pass
type Input struct {
	Primary     RecordSet
	Secondaries []RecordSet
	Params      Params
	// Limit caps the returned results; <= 0 means the engine's maximum
	Limit int
	// Budget bounds the pass; <= 0 means DefaultBudget
	Budget time.Duration
}

// Result is one secondary record with its best primary partner
type Result struct {
	Entity           core.Record        `json:"entity"`
	EntityType       core.EntityType    `json:"entityType"`
	Primary          core.Record        `json:"primary"`
	CorrelationScore float64            `json:"correlationScore"`
	FieldScores      map[string]float64 `json:"fieldScores"`
	MatchType        MatchType          `json:"matchType"`
	Confidence       Confidence         `json:"confidence"`
}

// Output is the outcome of a correlation pass
type Output struct {
	Results []Result `json:"correlated_results"`
	Stats   Stats    `json:"stats"`
	// Truncated is set when more results qualified than Limit allowed
	Truncated bool `json:"truncated"`
	// TimedOut is set when the pass stopped early; Results then only
	// cover the secondary records processed before the stop
	TimedOut bool `json:"timed_out"`
}

// Engine correlates record sets. It is safe for concurrent use.
type Engine struct {
	mapper        *core.FieldMapper
	logger        *zap.SugaredLogger
	geo           *GeoCache
	now           func() time.Time
	checkEvery    int
	defaultWeight float64
	maxLimit      int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGeoCache injects the place-name cache used by geographic matching.
// Without one, names are normalised on every comparison.
func WithGeoCache(g *GeoCache) Option {
	return func(e *Engine) {
		e.geo = g
	}
}

// WithClock replaces time.Now for budget accounting
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCheckEvery sets how many secondary records are processed between
// budget and cancellation checks
func WithCheckEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.checkEvery = n
		}
	}
}

// WithDefaultWeight sets the weight of fields without a custom weight
func WithDefaultWeight(w float64) Option {
	return func(e *Engine) {
		if w > 0 && w <= 1 {
			e.defaultWeight = w
		}
	}
}

// WithMaxLimit lowers the cap on results per pass
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= MaxLimit {
			e.maxLimit = n
		}
	}
}

// NewEngine creates a correlation engine over mapper
func NewEngine(mapper *core.FieldMapper, opts ...Option) *Engine {
	if mapper == nil {
		panic("mapper is required")
	}
	e := &Engine{
		mapper:        mapper,
		logger:        zap.NewNop().Sugar(),
		now:           time.Now,
		checkEvery:    DefaultCheckEvery,
		defaultWeight: DefaultWeight,
		maxLimit:      MaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckConfig validates the params against the entity types taking part,
// returning the defaulted params. Every failure is a *ConfigurationError.
func (e *Engine) CheckConfig(in Input) (Params, error) {
	if err := in.Params.Validate(); err != nil {
		return Params{}, err
	}
	p := in.Params.withDefaults(e.defaultWeight)

	types := []core.EntityType{in.Primary.EntityType}
	for _, s := range in.Secondaries {
		types = append(types, s.EntityType)
	}
	for _, et := range types {
		if !et.IsValid() {
			return Params{}, &ConfigurationError{EntityType: et, Msg: "unknown entity type"}
		}
	}
	if len(in.Secondaries) == 0 {
		return Params{}, &ConfigurationError{Msg: "at least one secondary record set is required"}
	}

	for _, f := range p.Fields {
		for _, et := range types {
			if e.mapper.IsValidField(f, et) {
				continue
			}
			return Params{}, &ConfigurationError{Field: f, EntityType: et, Msg: e.missingFieldHint(f, in.Primary.EntityType, et)}
		}
	}

	if p.Window != nil {
		for _, et := range types {
			if !e.mapper.IsValidField(timestampField, et) {
				return Params{}, &ConfigurationError{
					Field:      "temporalWindow",
					EntityType: et,
					Msg:        "temporal window requires a timestamp field",
				}
			}
		}
	}
	return p, nil
}

func (e *Engine) missingFieldHint(field string, primary, et core.EntityType) string {
	if canonical, ok := core.ResolveFieldAlias(field); ok && e.mapper.IsValidField(canonical, et) {
		return fmt.Sprintf("deprecated field name, use %q", canonical)
	}
	msg := "not defined"
	if et != primary {
		if shared := e.mapper.CompatibleFields(primary, et); len(shared) > 0 {
			msg += fmt.Sprintf("; fields shared by %s and %s: %s", primary, et, strings.Join(shared, ", "))
		}
	}
	return msg
}

// preparedRecord caches the resolved correlation values of one record
type preparedRecord struct {
	record   core.Record
	values   []interface{}
	resolved []bool
	ts       float64
	hasTS    bool
	defs     []core.FieldDef
}

func (e *Engine) prepare(rec core.Record, et core.EntityType, fields []string, defs []core.FieldDef, window bool) preparedRecord {
	pr := preparedRecord{
		record:   rec,
		values:   make([]interface{}, len(fields)),
		resolved: make([]bool, len(fields)),
		defs:     defs,
	}
	for i, f := range fields {
		pr.values[i], _, pr.resolved[i] = e.mapper.ResolveValue(rec, f, et)
	}
	if window {
		if v, _, ok := e.mapper.ResolveValue(rec, timestampField, et); ok {
			pr.ts, pr.hasTS = core.ToEpochSeconds(v)
		}
	}
	return pr
}

func (e *Engine) definitions(et core.EntityType, fields []string) []core.FieldDef {
	defs := make([]core.FieldDef, len(fields))
	for i, f := range fields {
		defs[i], _ = e.mapper.Lookup(f, et)
	}
	return defs
}

// Correlate runs one correlation pass. For each secondary record the best
// scoring primary record is kept (ties go to the earliest primary). Results
// are sorted by score, highest first, and cut to the limit.
//
// When the budget runs out the partial output is returned together with a
// *TimeoutError; a cancelled ctx returns the partial output and ctx.Err()
// wrapped.
func (e *Engine) Correlate(ctx context.Context, in Input) (*Output, error) {
	start := e.now()
	timer := time.Now()

	params, err := e.CheckConfig(in)
	if err != nil {
		metrics.CorrelationsTotal.WithLabelValues("config_error").Inc()
		return nil, err
	}

	budget := in.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	limit := in.Limit
	if limit <= 0 || limit > e.maxLimit {
		limit = e.maxLimit
	}

	var windowSecs float64
	useWindow := params.Window != nil
	if useWindow {
		windowSecs, _ = params.Window.Seconds()
	}

	matcher := NewMatcher(params.Fuzzy, e.geo)
	scorer := NewScorer(params)
	stats := newStatsBuilder(params.Fields)

	primaryDefs := e.definitions(in.Primary.EntityType, params.Fields)
	primaries := make([]preparedRecord, len(in.Primary.Records))
	for i, rec := range in.Primary.Records {
		primaries[i] = e.prepare(rec, in.Primary.EntityType, params.Fields, primaryDefs, useWindow)
	}

	var (
		results   []Result
		processed int
		pairs     int
		stopErr   error
	)

	check := func() error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("correlation cancelled: %w", err)
		}
		if elapsed := e.now().Sub(start); elapsed > budget {
			return &TimeoutError{Budget: budget, Elapsed: elapsed}
		}
		return nil
	}

sets:
	for _, set := range in.Secondaries {
		if stopErr = check(); stopErr != nil {
			break
		}
		secondaryDefs := e.definitions(set.EntityType, params.Fields)

		for _, rec := range set.Records {
			if processed > 0 && processed%e.checkEvery == 0 {
				if stopErr = check(); stopErr != nil {
					break sets
				}
			}
			processed++
			stats.secondary()

			sec := e.prepare(rec, set.EntityType, params.Fields, secondaryDefs, useWindow)
			best, outcomes, n := e.bestPartner(primaries, sec, params, matcher, scorer, windowSecs, useWindow)
			pairs += n
			if best == nil {
				continue
			}
			best.EntityType = set.EntityType
			stats.add(*best, outcomes)
			results = append(results, *best)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CorrelationScore > results[j].CorrelationScore
	})

	out := &Output{Stats: stats.snapshot()}
	if len(results) > limit {
		results = results[:limit]
		out.Truncated = true
	}
	out.Results = results
	if out.Results == nil {
		out.Results = []Result{}
	}

	metrics.PairsCompared.Add(float64(pairs))
	metrics.CorrelationDuration.Observe(time.Since(timer).Seconds())
	for _, r := range out.Results {
		metrics.CorrelatedResults.WithLabelValues(strings.ToLower(string(r.Confidence))).Inc()
	}

	if stopErr != nil {
		out.TimedOut = true
		var te *TimeoutError
		if errors.As(stopErr, &te) {
			te.Stats = out.Stats
			metrics.CorrelationsTotal.WithLabelValues("timeout").Inc()
			e.logger.Warnw("Correlation pass exceeded its budget",
				"budget", budget,
				"elapsed", te.Elapsed,
				"processed", processed)
		} else {
			metrics.CorrelationsTotal.WithLabelValues("cancelled").Inc()
			e.logger.Infow("Correlation pass cancelled", "processed", processed)
		}
		return out, stopErr
	}

	metrics.CorrelationsTotal.WithLabelValues("ok").Inc()
	e.logger.Debugw("Correlation pass complete",
		"primary_entity", in.Primary.EntityType,
		"primary_records", len(primaries),
		"total_secondary", out.Stats.TotalSecondary,
		"correlated", out.Stats.CorrelatedCount,
		"returned", len(out.Results),
		"pairs", pairs)
	return out, nil
}

// bestPartner scores sec against every primary and returns the best
// qualifying pair, its outcomes and the number of pairs compared
func (e *Engine) bestPartner(primaries []preparedRecord, sec preparedRecord, p Params, m *Matcher, s *Scorer, windowSecs float64, useWindow bool) (*Result, []FieldOutcome, int) {
	var (
		best         *Result
		bestOutcomes []FieldOutcome
		compared     int
	)

	for _, prim := range primaries {
		if useWindow && prim.hasTS && sec.hasTS && math.Abs(prim.ts-sec.ts) > windowSecs {
			continue
		}
		compared++

		outcomes := make([]FieldOutcome, len(p.Fields))
		for i, f := range p.Fields {
			o := FieldOutcome{Field: f}
			if prim.resolved[i] && sec.resolved[i] {
				o.Resolved = true
				o.Score = compareValues(m, prim.defs[i], prim.values[i], sec.values[i])
			}
			outcomes[i] = o
		}

		if !s.Qualifies(outcomes) {
			continue
		}
		score := s.Score(outcomes)
		if score < p.MinimumScore {
			continue
		}
		if best != nil && score <= best.CorrelationScore {
			continue
		}

		fieldScores := make(map[string]float64, len(outcomes))
		for _, o := range outcomes {
			fieldScores[o.Field] = o.Score
		}
		best = &Result{
			Entity:           sec.record,
			Primary:          prim.record,
			CorrelationScore: score,
			FieldScores:      fieldScores,
			MatchType:        Classify(outcomes),
			Confidence:       ConfidenceFor(score),
		}
		bestOutcomes = outcomes
		if score >= 1 {
			break
		}
	}
	return best, bestOutcomes, compared
}
