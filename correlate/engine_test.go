package correlate

import (
	"context"
	"errors"
	"testing"
	"time"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithLogger(zap.NewNop().Sugar())}, opts...)
	return NewEngine(core.DefaultFieldMapper(), opts...)
}

func flow(id, srcIP, dstIP string) core.Record {
	return core.Record{
		"id":          id,
		"source":      map[string]interface{}{"ip": srcIP},
		"destination": map[string]interface{}{"ip": dstIP},
	}
}

func alarm(id, srcIP, dstIP string) core.Record {
	return core.Record{
		"aid":    id,
		"source": map[string]interface{}{"ip": srcIP},
		"remote": map[string]interface{}{"ip": dstIP},
	}
}

func TestEngine_SubnetScenario(t *testing.T) {
	e := newTestEngine()
	out, err := e.Correlate(context.Background(), Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "192.168.1.5", "1.1.1.1")}},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a1", "192.168.1.9", "8.8.8.8")}},
		},
		Params: Params{
			Fields:  []string{"source_ip"},
			Weights: map[string]float64{"source_ip": 1.0},
			Fuzzy:   &FuzzyConfig{Enabled: true, IPSubnetMatching: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.Equal(t, 0.75, r.FieldScores["source_ip"])
	assert.InDelta(t, 0.75, r.CorrelationScore, 1e-9)
	assert.Equal(t, ConfidenceMedium, r.Confidence)
	assert.Equal(t, MatchTypeFuzzy, r.MatchType)
	assert.Equal(t, core.EntityAlarms, r.EntityType)
	assert.Equal(t, "a1", r.Entity["aid"])
	assert.Equal(t, "f1", r.Primary["id"])
}

func TestEngine_MinimumScoreExcludes(t *testing.T) {
	e := newTestEngine()
	out, err := e.Correlate(context.Background(), Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "192.168.1.5", "10.0.0.1")}},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a1", "192.168.1.9", "10.0.0.7")}},
		},
		Params: Params{
			Fields:       []string{"source_ip", "destination_ip"},
			Fuzzy:        &FuzzyConfig{Enabled: true, IPSubnetMatching: true},
			MinimumScore: 0.9,
		},
	})
	require.NoError(t, err)

	assert.Empty(t, out.Results)
	assert.Equal(t, 1, out.Stats.TotalSecondary)
	assert.Equal(t, 0, out.Stats.CorrelatedCount)
	assert.False(t, out.Truncated)
}

func TestEngine_BestPartnerPerSecondary(t *testing.T) {
	e := newTestEngine()
	primaries := []core.Record{
		flow("weak", "192.168.9.9", "1.1.1.1"),
		flow("first", "10.0.0.1", "1.1.1.1"),
		flow("second", "10.0.0.1", "1.1.1.1"),
	}
	out, err := e.Correlate(context.Background(), Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: primaries},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a1", "10.0.0.1", "9.9.9.9")}},
		},
		Params: Params{
			Fields: []string{"source_ip"},
			Fuzzy:  &FuzzyConfig{Enabled: true, IPSubnetMatching: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "first", out.Results[0].Primary["id"])
	assert.Equal(t, MatchTypeExact, out.Results[0].MatchType)
	assert.Equal(t, ConfidenceHigh, out.Results[0].Confidence)
}

func TestEngine_SortAndLimit(t *testing.T) {
	e := newTestEngine()
	secondaries := []core.Record{
		alarm("quarter", "10.1.1.1", "x"),
		alarm("exact", "10.0.0.1", "x"),
		alarm("half", "10.0.1.1", "x"),
		alarm("none", "11.0.0.1", "x"),
	}
	in := Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "y")}},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: secondaries},
		},
		Params: Params{
			Fields: []string{"source_ip"},
			Fuzzy:  &FuzzyConfig{Enabled: true, IPSubnetMatching: true},
		},
	}

	out, err := e.Correlate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.Equal(t, "exact", out.Results[0].Entity["aid"])
	assert.Equal(t, "half", out.Results[1].Entity["aid"])
	assert.Equal(t, "quarter", out.Results[2].Entity["aid"])
	assert.Equal(t, 4, out.Stats.TotalSecondary)
	assert.Equal(t, 3, out.Stats.CorrelatedCount)
	assert.InDelta(t, (1+0.5+0.25)/3, out.Stats.AverageScore, 1e-9)
	assert.Equal(t, ScoreDistribution{High: 1, Medium: 1, Low: 1}, out.Stats.ScoreDistribution)

	in.Limit = 2
	out, err = e.Correlate(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
	assert.True(t, out.Truncated)
	assert.Equal(t, 3, out.Stats.CorrelatedCount)
}

func TestEngine_CombineTypes(t *testing.T) {
	e := newTestEngine()
	in := Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "1.1.1.1")}},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a1", "10.0.0.1", "2.2.2.2")}},
		},
		Params: Params{Fields: []string{"source_ip", "destination_ip"}},
	}

	out, err := e.Correlate(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out.Results, "AND needs every field")

	in.Params.Type = CombineOr
	out, err = e.Correlate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.InDelta(t, 0.5, out.Results[0].CorrelationScore, 1e-9)
	assert.Equal(t, MatchTypePartial, out.Results[0].MatchType)
	assert.Equal(t, map[string]float64{"source_ip": 1, "destination_ip": 0}, out.Results[0].FieldScores)
}

func TestEngine_UnresolvedFields(t *testing.T) {
	e := newTestEngine()
	noDst := core.Record{"aid": "a1", "source": map[string]interface{}{"ip": "10.0.0.1"}}
	in := Input{
		Primary:     RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "1.1.1.1")}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{noDst}}},
		Params:      Params{Fields: []string{"source_ip", "destination_ip"}, Type: CombineOr},
	}

	out, err := e.Correlate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.InDelta(t, 1.0, out.Results[0].CorrelationScore, 1e-9)
	assert.Equal(t, MatchTypePartial, out.Results[0].MatchType)

	fs := out.Stats.FieldStatistics
	assert.Equal(t, 1, fs["source_ip"].Exact)
	assert.Equal(t, 1, fs["destination_ip"].Partial)
	assert.InDelta(t, 1.0, fs["source_ip"].AvgScore, 1e-9)
	assert.InDelta(t, 0.0, fs["destination_ip"].AvgScore, 1e-9)
}

func TestEngine_ArrayValues(t *testing.T) {
	e := newTestEngine()
	out, err := e.Correlate(context.Background(), Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{
			{"category": []interface{}{"video", "social"}},
		}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{
			{"category": "Social"},
		}}},
		Params: Params{Fields: []string{"category"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, MatchTypeExact, out.Results[0].MatchType)
}

func TestEngine_TemporalWindow(t *testing.T) {
	e := newTestEngine()
	base := 1717243200.0

	primary := core.Record{"id": "f1", "ts": base, "source": map[string]interface{}{"ip": "10.0.0.1"}}
	near := core.Record{"aid": "near", "ts": base + 30, "source": map[string]interface{}{"ip": "10.0.0.1"}}
	far := core.Record{"aid": "far", "ts": base + 600, "source": map[string]interface{}{"ip": "10.0.0.1"}}
	undated := core.Record{"aid": "undated", "source": map[string]interface{}{"ip": "10.0.0.1"}}

	out, err := e.Correlate(context.Background(), Input{
		Primary:     RecordSet{EntityType: core.EntityFlows, Records: []core.Record{primary}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{near, far, undated}}},
		Params: Params{
			Fields: []string{"source_ip"},
			Window: &TemporalWindow{Size: 1, Unit: "minutes"},
		},
	})
	require.NoError(t, err)

	var ids []interface{}
	for _, r := range out.Results {
		ids = append(ids, r.Entity["aid"])
	}
	assert.ElementsMatch(t, []interface{}{"near", "undated"}, ids)
	assert.Equal(t, 3, out.Stats.TotalSecondary)
}

func TestEngine_MultipleSecondarySets(t *testing.T) {
	e := newTestEngine()
	device := core.Record{"mac": "AA:BB:CC:DD:EE:FF", "name": "laptop"}
	out, err := e.Correlate(context.Background(), Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{
			{"device": map[string]interface{}{"mac": "aa:bb:cc:dd:ee:ff"}},
		}},
		Secondaries: []RecordSet{
			{EntityType: core.EntityAlarms, Records: []core.Record{{"device": map[string]interface{}{"mac": "AA:BB:CC:DD:EE:FF"}}}},
			{EntityType: core.EntityDevices, Records: []core.Record{device}},
		},
		Params: Params{Fields: []string{"mac"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, core.EntityAlarms, out.Results[0].EntityType)
	assert.Equal(t, core.EntityDevices, out.Results[1].EntityType)
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	e := newTestEngine()
	primary := RecordSet{EntityType: core.EntityFlows}
	alarms := []RecordSet{{EntityType: core.EntityAlarms}}

	tests := []struct {
		name   string
		in     Input
		field  string
		entity core.EntityType
		msg    string
	}{
		{
			name:   "field missing on primary",
			in:     Input{Primary: primary, Secondaries: alarms, Params: Params{Fields: []string{"severity"}}},
			field:  "severity",
			entity: core.EntityFlows,
		},
		{
			name:   "field missing on secondary",
			in:     Input{Primary: primary, Secondaries: alarms, Params: Params{Fields: []string{"application"}}},
			field:  "application",
			entity: core.EntityAlarms,
			msg:    "fields shared by flows and alarms",
		},
		{
			name:   "deprecated name",
			in:     Input{Primary: primary, Secondaries: alarms, Params: Params{Fields: []string{"src_ip"}}},
			field:  "src_ip",
			entity: core.EntityFlows,
			msg:    `use "source_ip"`,
		},
		{
			name:   "unknown entity type",
			in:     Input{Primary: primary, Secondaries: []RecordSet{{EntityType: "logs"}}, Params: Params{Fields: []string{"mac"}}},
			entity: "logs",
		},
		{
			name: "no secondaries",
			in:   Input{Primary: primary, Params: Params{Fields: []string{"mac"}}},
		},
		{
			name: "invalid params",
			in:   Input{Primary: primary, Secondaries: alarms, Params: Params{Fields: []string{"mac"}, MinimumScore: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Correlate(context.Background(), tt.in)
			assert.Nil(t, out)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))

			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.entity, ce.EntityType)
			if tt.msg != "" {
				assert.Contains(t, ce.Error(), tt.msg)
			}
		})
	}
}

func TestEngine_WindowNeedsTimestamp(t *testing.T) {
	mapper, err := core.NewFieldMapper(map[core.EntityType][]core.FieldDef{
		core.EntityFlows: {
			{Name: "mac", Type: core.FieldTypeString, Class: core.MatchExact, Paths: []string{"mac"}},
			{Name: "timestamp", Type: core.FieldTypeTimestamp, Class: core.MatchExact, Paths: []string{"ts"}},
		},
		core.EntityDevices: {
			{Name: "mac", Type: core.FieldTypeString, Class: core.MatchExact, Paths: []string{"mac"}},
		},
	})
	require.NoError(t, err)

	_, err = NewEngine(mapper).Correlate(context.Background(), Input{
		Primary:     RecordSet{EntityType: core.EntityFlows},
		Secondaries: []RecordSet{{EntityType: core.EntityDevices}},
		Params:      Params{Fields: []string{"mac"}, Window: &TemporalWindow{Size: 1, Unit: "h"}},
	})
	var ce *ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, core.EntityDevices, ce.EntityType)
	assert.Equal(t, "temporalWindow", ce.Field)
}

func TestEngine_Timeout(t *testing.T) {
	var tick int64
	clock := func() time.Time {
		tick++
		return time.Unix(tick, 0)
	}
	e := newTestEngine(WithClock(clock), WithCheckEvery(2))

	secondaries := make([]core.Record, 10)
	for i := range secondaries {
		secondaries[i] = alarm("a", "10.0.0.1", "x")
	}

	out, err := e.Correlate(context.Background(), Input{
		Primary:     RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "y")}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: secondaries}},
		Params:      Params{Fields: []string{"source_ip"}},
		Budget:      3 * time.Second,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3*time.Second, te.Budget)
	assert.Equal(t, 4*time.Second, te.Elapsed)
	assert.Equal(t, 6, te.Stats.TotalSecondary)

	require.NotNil(t, out)
	assert.True(t, out.TimedOut)
	assert.Len(t, out.Results, 6)
	assert.Equal(t, 6, out.Stats.CorrelatedCount)
}

func TestEngine_Cancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.Correlate(ctx, Input{
		Primary:     RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "y")}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a", "10.0.0.1", "x")}}},
		Params:      Params{Fields: []string{"source_ip"}},
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
	require.NotNil(t, out)
	assert.True(t, out.TimedOut)
	assert.Empty(t, out.Results)
}

func TestEngine_EmptyInputs(t *testing.T) {
	e := newTestEngine()
	out, err := e.Correlate(context.Background(), Input{
		Primary:     RecordSet{EntityType: core.EntityFlows},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{alarm("a", "10.0.0.1", "x")}}},
		Params:      Params{Fields: []string{"source_ip"}},
	})
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.Equal(t, 1, out.Stats.TotalSecondary)
	assert.Equal(t, 0.0, out.Stats.AverageScore)
}

func TestNewEngine_NilMapper(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil) })
}

func TestEngine_ConfiguredDefaults(t *testing.T) {
	in := Input{
		Primary: RecordSet{EntityType: core.EntityFlows, Records: []core.Record{flow("f1", "10.0.0.1", "1.1.1.1")}},
		Secondaries: []RecordSet{{EntityType: core.EntityAlarms, Records: []core.Record{
			alarm("a1", "10.0.0.1", "2.2.2.2"),
			alarm("a2", "10.0.0.1", "3.3.3.3"),
		}}},
		Params: Params{
			Fields:  []string{"source_ip", "destination_ip"},
			Type:    CombineOr,
			Weights: map[string]float64{"source_ip": 1.0},
		},
	}

	out, err := newTestEngine().Correlate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.InDelta(t, 1/1.5, out.Results[0].CorrelationScore, 1e-9)

	out, err = newTestEngine(WithDefaultWeight(0.25), WithMaxLimit(1)).Correlate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Truncated)
	assert.InDelta(t, 0.8, out.Results[0].CorrelationScore, 1e-9)
}
