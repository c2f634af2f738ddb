package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitTable_Convert(t *testing.T) {
	tests := []struct {
		name  string
		table UnitTable
		value float64
		unit  string
		want  float64
	}{
		{"base", ByteUnits, 10, "", 10},
		{"kb", ByteUnits, 5, "KB", 5000},
		{"mb lower", ByteUnits, 1, "mb", 1e6},
		{"tb", ByteUnits, 2, "TB", 2e12},
		{"minutes", DurationUnits, 30, "m", 1800},
		{"ms", DurationUnits, 500, "ms", 0.5},
		{"days", DurationUnits, 1, "D", 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.table.Convert(tt.value, tt.unit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUnitTable_ConvertErrors(t *testing.T) {
	_, err := ByteUnits.Convert(1, "PB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B, KB, MB, GB, TB")

	var none UnitTable
	_, err = none.Convert(1, "KB")
	assert.Error(t, err)

	v, err := none.Convert(3, "")
	assert.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestParseAbsoluteTime(t *testing.T) {
	tests := []string{
		"2024-01-01",
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00",
		"2024-01-01 00:00:00",
		"2024-01-01T01:00:00+01:00",
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range tests {
		got, err := ParseAbsoluteTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseAbsoluteTime("yesterday")
	assert.Error(t, err)
}

func TestToEpochSeconds(t *testing.T) {
	ref := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	secs := float64(ref.Unix())

	tests := []struct {
		name string
		in   interface{}
	}{
		{"seconds", secs},
		{"millis", secs * 1000},
		{"rfc3339", "2024-06-01T12:00:00Z"},
		{"time", ref},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToEpochSeconds(tt.in)
			require.True(t, ok)
			assert.InDelta(t, secs, got, 1e-3)
		})
	}

	_, ok := ToEpochSeconds(true)
	assert.False(t, ok)
	_, ok = ToEpochSeconds("not a time")
	assert.False(t, ok)
}

func TestWindowDuration(t *testing.T) {
	d, err := WindowDuration(5, WindowMinutes)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = WindowDuration(1.5, WindowHours)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = WindowDuration(0, WindowSeconds)
	assert.Error(t, err)
	_, err = WindowDuration(1, WindowUnit("weeks"))
	assert.Error(t, err)

	u, err := ParseWindowUnit("H")
	require.NoError(t, err)
	assert.Equal(t, WindowHours, u)
	_, err = ParseWindowUnit("fortnight")
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		expr    string
		want    time.Duration
		wantErr bool
	}{
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{" 90 s ", 90 * time.Second, false},
		{"1.5h", 90 * time.Minute, false},
		{"0h", 0, true},
		{"h", 0, true},
		{"-1h", 0, true},
		{"2w", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseWindow(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
