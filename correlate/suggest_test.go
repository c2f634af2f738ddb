package correlate

import (
	"errors"
	"testing"

	"argus/core"
	"argus/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggest_KnownPair(t *testing.T) {
	mapper := core.DefaultFieldMapper()

	got := Suggest(mapper, core.EntityFlows, core.EntityAlarms)
	require.Len(t, got, 7)
	assert.Equal(t, []string{"source_ip", "destination_ip"}, got[0].Fields)
	assert.Equal(t, 0.95, got[0].Confidence)
	assert.NotEmpty(t, got[0].Reason)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
}

func TestSuggest_Symmetric(t *testing.T) {
	mapper := core.DefaultFieldMapper()
	for _, a := range core.AllEntityTypes {
		for _, b := range core.AllEntityTypes {
			assert.Equal(t, Suggest(mapper, a, b), Suggest(mapper, b, a), "%s/%s", a, b)
		}
	}
}

func TestSuggest_TopPicks(t *testing.T) {
	mapper := core.DefaultFieldMapper()
	tests := []struct {
		a, b core.EntityType
		top  []string
	}{
		{core.EntityFlows, core.EntityRules, []string{"destination_ip"}},
		{core.EntityFlows, core.EntityDevices, []string{"mac"}},
		{core.EntityAlarms, core.EntityDevices, []string{"mac"}},
		{core.EntityRules, core.EntityTargetLists, []string{"target"}},
		{core.EntityTargetLists, core.EntityFlows, []string{"domain"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"_"+string(tt.b), func(t *testing.T) {
			got := Suggest(mapper, tt.a, tt.b)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.top, got[0].Fields)
		})
	}
}

func TestSuggest_Fallback(t *testing.T) {
	got := Suggest(core.DefaultFieldMapper(), core.EntityDevices, core.EntityTargetLists)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"id"}, got[0].Fields)
	assert.Equal(t, fallbackConfidence, got[0].Confidence)
}

func TestSuggest_SameType(t *testing.T) {
	got := Suggest(core.DefaultFieldMapper(), core.EntityDevices, core.EntityDevices)

	var fields []string
	for _, s := range got {
		fields = append(fields, s.Fields[0])
	}
	assert.Equal(t, []string{"id", "mac", "device.ip", "source_ip", "device_name", "vendor"}, fields)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, 0.6, got[len(got)-1].Confidence)
}

func TestSuggest_ReturnsCopies(t *testing.T) {
	mapper := core.DefaultFieldMapper()
	got := Suggest(mapper, core.EntityFlows, core.EntityAlarms)
	got[0].Fields[0] = "changed"

	again := Suggest(mapper, core.EntityFlows, core.EntityAlarms)
	assert.Equal(t, "source_ip", again[0].Fields[0])
}

func TestSuggestForQueries(t *testing.T) {
	v := search.NewValidator(core.DefaultFieldMapper(), nil)

	set, err := SuggestForQueries(v, "source_ip:10.0.0.1", "severity:high")
	require.NoError(t, err)
	assert.Equal(t, core.EntityFlows, set.PrimaryEntity)
	assert.Equal(t, core.EntityAlarms, set.SecondaryEntity)
	require.NotEmpty(t, set.Suggestions)
	assert.Equal(t, []string{"source_ip", "destination_ip"}, set.Suggestions[0].Fields)
}

func TestSuggestForQueries_Errors(t *testing.T) {
	v := search.NewValidator(core.DefaultFieldMapper(), nil)

	_, err := SuggestForQueries(v, "suspicious", "severity:high")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary query")
	var se *search.SemanticError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, search.AmbiguousEntity, se.Kind)

	_, err = SuggestForQueries(v, "mac:aa", "(severity:high")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secondary query")
	var syn *search.SyntaxError
	assert.True(t, errors.As(err, &syn))
}
