package config

import (
	"fmt"
	"sort"
	"time"
)

// SettingSchema describes one configuration key
type SettingSchema struct {
	Type        string      `json:"type"`
	Min         *int        `json:"min,omitempty"`
	Max         *int        `json:"max,omitempty"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
}

func intRange(min, max int) (*int, *int) {
	return &min, &max
}

func intSetting(def, min, max int, desc string) SettingSchema {
	lo, hi := intRange(min, max)
	return SettingSchema{Type: "int", Min: lo, Max: hi, Default: def, Description: desc}
}

// Schema returns every configuration key with its default and bounds
func Schema() map[string]SettingSchema {
	return map[string]SettingSchema{
		"logging.level": {Type: "string", Default: "info", Description: "Log level: debug, info, warn or error"},

		"query.max_length":      intSetting(MaxQueryLength, 1, MaxQueryLength, "Maximum query length in characters; may only be lowered"),
		"query.pattern_timeout": {Type: "duration", Default: 100 * time.Millisecond, Description: "Time limit of one sanitizer pattern match"},

		"correlation.timeout":        {Type: "duration", Default: 10 * time.Second, Description: "Wall-clock budget of one correlation pass"},
		"correlation.default_weight": {Type: "float", Default: 0.5, Description: "Weight of correlation fields without a custom weight"},
		"correlation.check_every":    intSetting(256, 1, 1<<20, "Secondary records processed between time budget checks"),
		"correlation.max_limit":      intSetting(MaxCorrelationLimit, 1, MaxCorrelationLimit, "Maximum results returned by one correlation"),

		"fields.mapping_file": {Type: "string", Default: "", Description: "Optional YAML file replacing the built-in field mapping table"},
		"geo.cache_size":      intSetting(1024, 1, 1<<20, "Entries kept in the normalised place-name cache"),
		"source.data_dir":     {Type: "string", Default: "./data", Description: "Directory holding <entity_type>.json or .msgpack collections"},
		"batch.workers":       intSetting(4, 1, 256, "Concurrent workers for batch correlation"),
	}
}

// Keys returns the schema keys in sorted order
func Keys() []string {
	schema := Schema()
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s SettingSchema) checkInt(key string, v int) error {
	if s.Min != nil && v < *s.Min {
		return fmt.Errorf("%s must be at least %d, got %d", key, *s.Min, v)
	}
	if s.Max != nil && v > *s.Max {
		return fmt.Errorf("%s must be at most %d, got %d", key, *s.Max, v)
	}
	return nil
}

// Settings returns the effective value of every schema key
func (c *Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"logging.level":              c.Logging.Level,
		"query.max_length":           c.Query.MaxLength,
		"query.pattern_timeout":      c.Query.PatternTimeout,
		"correlation.timeout":        c.Correlation.Timeout,
		"correlation.default_weight": c.Correlation.DefaultWeight,
		"correlation.check_every":    c.Correlation.CheckEvery,
		"correlation.max_limit":      c.Correlation.MaxLimit,
		"fields.mapping_file":        c.Fields.MappingFile,
		"geo.cache_size":             c.Geo.CacheSize,
		"source.data_dir":            c.Source.DataDir,
		"batch.workers":              c.Batch.Workers,
	}
}
