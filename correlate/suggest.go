package correlate

import (
	"fmt"
	"sort"

	"argus/core"
	"argus/search"
)

// fallbackConfidence is given to fields two types merely share
const fallbackConfidence = 0.3

// Suggestion is a proposed set of correlation fields
type Suggestion struct {
	Fields     []string `json:"fields"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// SuggestionSet is the answer for a pair of queries
type SuggestionSet struct {
	PrimaryEntity   core.EntityType `json:"primary_entity"`
	SecondaryEntity core.EntityType `json:"secondary_entity"`
	Suggestions     []Suggestion    `json:"suggestions"`
}

type typePair [2]core.EntityType

func pairOf(a, b core.EntityType) typePair {
	if b.Less(a) {
		a, b = b, a
	}
	return typePair{a, b}
}

// suggestionTable lists proven field sets per unordered entity-type pair,
// in tie-break order
var suggestionTable = map[typePair][]Suggestion{
	pairOf(core.EntityFlows, core.EntityAlarms): {
		{Fields: []string{"source_ip", "destination_ip"}, Confidence: 0.95, Reason: "alarms are raised on the connection the flow describes"},
		{Fields: []string{"device.ip"}, Confidence: 0.9, Reason: "same local device"},
		{Fields: []string{"destination_ip", "destination_port"}, Confidence: 0.85, Reason: "same remote service"},
		{Fields: []string{"domain"}, Confidence: 0.8, Reason: "same remote domain"},
		{Fields: []string{"mac"}, Confidence: 0.75, Reason: "same device hardware address"},
		{Fields: []string{"source_ip"}, Confidence: 0.7, Reason: "same originating address"},
		{Fields: []string{"country"}, Confidence: 0.5, Reason: "same remote country"},
	},
	pairOf(core.EntityFlows, core.EntityRules): {
		{Fields: []string{"destination_ip"}, Confidence: 0.9, Reason: "rules target remote addresses"},
		{Fields: []string{"domain"}, Confidence: 0.85, Reason: "rules target remote domains"},
		{Fields: []string{"destination_port", "protocol"}, Confidence: 0.7, Reason: "rules scoped to a port and protocol"},
		{Fields: []string{"mac"}, Confidence: 0.6, Reason: "device-scoped rules"},
	},
	pairOf(core.EntityFlows, core.EntityDevices): {
		{Fields: []string{"mac"}, Confidence: 0.95, Reason: "device identity"},
		{Fields: []string{"source_ip"}, Confidence: 0.85, Reason: "device address"},
		{Fields: []string{"device_name"}, Confidence: 0.7, Reason: "device name"},
	},
	pairOf(core.EntityFlows, core.EntityTargetLists): {
		{Fields: []string{"domain"}, Confidence: 0.85, Reason: "flows to listed destinations"},
		{Fields: []string{"category"}, Confidence: 0.5, Reason: "same content category"},
	},
	pairOf(core.EntityAlarms, core.EntityRules): {
		{Fields: []string{"destination_ip"}, Confidence: 0.85, Reason: "rules blocking the alarmed remote address"},
		{Fields: []string{"domain"}, Confidence: 0.8, Reason: "rules blocking the alarmed remote domain"},
		{Fields: []string{"mac"}, Confidence: 0.6, Reason: "device-scoped rules"},
	},
	pairOf(core.EntityAlarms, core.EntityDevices): {
		{Fields: []string{"mac"}, Confidence: 0.95, Reason: "device identity"},
		{Fields: []string{"device.ip"}, Confidence: 0.85, Reason: "device address"},
		{Fields: []string{"device_name"}, Confidence: 0.7, Reason: "device name"},
	},
	pairOf(core.EntityAlarms, core.EntityTargetLists): {
		{Fields: []string{"domain"}, Confidence: 0.8, Reason: "alarms on listed destinations"},
		{Fields: []string{"category"}, Confidence: 0.5, Reason: "same content category"},
	},
	pairOf(core.EntityRules, core.EntityDevices): {
		{Fields: []string{"mac"}, Confidence: 0.9, Reason: "rules scoped to the device"},
	},
	pairOf(core.EntityRules, core.EntityTargetLists): {
		{Fields: []string{"target"}, Confidence: 0.9, Reason: "rules that reference the list"},
		{Fields: []string{"domain"}, Confidence: 0.8, Reason: "rules on listed domains"},
	},
}

// Suggest ranks correlation field sets for two entity types, highest
// confidence first, ties in table order. Pairs without a table entry fall
// back to the fields both types define.
func Suggest(mapper *core.FieldMapper, a, b core.EntityType) []Suggestion {
	var out []Suggestion
	if a == b {
		out = sameTypeSuggestions(mapper, a)
	} else {
		for _, s := range suggestionTable[pairOf(a, b)] {
			if validForBoth(mapper, s.Fields, a, b) {
				out = append(out, copySuggestion(s))
			}
		}
		if len(out) == 0 {
			for _, f := range mapper.CompatibleFields(a, b) {
				if f == timestampField {
					continue
				}
				out = append(out, Suggestion{
					Fields:     []string{f},
					Confidence: fallbackConfidence,
					Reason:     "field defined by both entity types",
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

// sameTypeSuggestions derives suggestions from the type's own fields:
// identifiers first, then addresses, then free text
func sameTypeSuggestions(mapper *core.FieldMapper, et core.EntityType) []Suggestion {
	var out []Suggestion
	for _, def := range mapper.Definitions(et) {
		switch {
		case def.Name == "id" || def.Name == "mac":
			out = append(out, Suggestion{Fields: []string{def.Name}, Confidence: 0.9, Reason: "same identifier"})
		case def.Class == core.MatchIP:
			out = append(out, Suggestion{Fields: []string{def.Name}, Confidence: 0.8, Reason: "same address"})
		case def.Class == core.MatchText:
			out = append(out, Suggestion{Fields: []string{def.Name}, Confidence: 0.6, Reason: "similar text"})
		}
	}
	return out
}

func validForBoth(mapper *core.FieldMapper, fields []string, a, b core.EntityType) bool {
	for _, f := range fields {
		if !mapper.IsValidField(f, a) || !mapper.IsValidField(f, b) {
			return false
		}
	}
	return true
}

func copySuggestion(s Suggestion) Suggestion {
	s.Fields = append([]string(nil), s.Fields...)
	return s
}

// SuggestForQueries infers the entity type of both queries and suggests
// correlation fields for the pair
func SuggestForQueries(v *search.Validator, primary, secondary string) (*SuggestionSet, error) {
	a, err := inferQuery(v, primary)
	if err != nil {
		return nil, fmt.Errorf("primary query: %w", err)
	}
	b, err := inferQuery(v, secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary query: %w", err)
	}
	return &SuggestionSet{
		PrimaryEntity:   a,
		SecondaryEntity: b,
		Suggestions:     Suggest(v.Mapper(), a, b),
	}, nil
}

func inferQuery(v *search.Validator, query string) (core.EntityType, error) {
	tree, err := v.Prepare(query)
	if err != nil {
		return "", err
	}
	return search.InferEntityType(tree, v.Mapper())
}
