// Package correlate matches records of one entity type against records of
// other entity types on shared logical fields, scoring each pair with exact
// and fuzzy per-field strategies and a weighted scorer.
//
// The engine is CPU-bound and holds no mutable state between calls; one
// Engine may serve concurrent correlation passes. Long passes are bounded
// by a wall-clock budget and a cancelled context, both checked between
// secondary record sets and every few hundred secondary records.
package correlate
