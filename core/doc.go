// Package core defines the record model shared by the query and correlation
// layers: entity types, opaque records, field types and the field mapping
// table.
//
// # Field mapping
//
// Every entity type (flows, alarms, rules, devices, target lists) stores the
// same concept under different keys. The FieldMapper reconciles them: a
// logical field name such as "source_ip" resolves to an ordered list of
// concrete dot-separated paths per entity type, and the first path whose
// value is present and non-null wins.
//
// # Concurrency
//
// A FieldMapper is immutable once constructed. It is safe to share one
// instance between any number of goroutines without locking.
package core
