package search

import (
	"argus/core"
)

// InferEntityType picks the entity type a query targets from its fields.
//
// Types on which every field is valid win; among several the one with the
// most specific fields (largest sum of 1/|types defining the field|) wins,
// ties broken by declaration order. When no type covers every field the
// best-covering type is returned so validation can report the unknown
// fields against it. Deprecated aliases count as their canonical name.
func InferEntityType(tree Node, mapper *core.FieldMapper) (core.EntityType, error) {
	fields := LeafFields(tree)
	if len(fields) == 0 {
		return "", &SemanticError{
			Kind: AmbiguousEntity,
			Msg:  "cannot infer an entity type from a free-text query, name the entity type explicitly",
		}
	}

	var (
		best         core.EntityType
		bestCovered  = -1
		bestSpecific float64
	)
	for _, et := range mapper.EntityTypes() {
		covered := 0
		specific := 0.0
		for _, f := range fields {
			name := f
			if !mapper.IsValidField(name, et) {
				name = core.ResolveFieldName(f)
			}
			if !mapper.IsValidField(name, et) {
				continue
			}
			covered++
			specific += 1 / float64(len(mapper.EntityTypesFor(name)))
		}

		// strict comparisons keep the earliest type on ties
		if covered > bestCovered || (covered == bestCovered && specific > bestSpecific) {
			best, bestCovered, bestSpecific = et, covered, specific
		}
	}

	if bestCovered <= 0 {
		return "", &SemanticError{
			Kind:  AmbiguousEntity,
			Field: fields[0],
			Msg:   "no entity type defines any of the query fields",
		}
	}
	return best, nil
}
