package search

import (
	"errors"
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferEntityType(t *testing.T) {
	tests := []struct {
		query string
		want  core.EntityType
	}{
		{"severity:high", core.EntityAlarms},
		{"source_ip:10.0.0.1", core.EntityFlows},
		{"mac:aa:bb:cc:dd:ee:ff vendor:apple", core.EntityDevices},
		{"target:evil.com", core.EntityRules},
		{"name:blocklist owner:admin", core.EntityTargetLists},
		{"src_ip:10.0.0.1", core.EntityFlows},
		{"severity:high AND download:>5", core.EntityAlarms},
		{"protocol:tcp bytes:>5 nosuchfield:1", core.EntityFlows},
		{"action:block laptop", core.EntityRules},
	}

	mapper := core.DefaultFieldMapper()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := InferEntityType(mustParse(t, tt.query), mapper)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferEntityType_Ambiguous(t *testing.T) {
	mapper := core.DefaultFieldMapper()

	for _, query := range []string{"laptop", `"exact phrase" -other`, "bogus:1 other:2"} {
		t.Run(query, func(t *testing.T) {
			_, err := InferEntityType(mustParse(t, query), mapper)
			require.Error(t, err)

			var se *SemanticError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, AmbiguousEntity, se.Kind)
		})
	}
}
