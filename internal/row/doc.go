// Package row defines the record type flowing through the tablekit pipeline.
//
// A Row is an opaque record with a unique ID plus a fixed set of domain
// fields (name, status, category, value, date, tags) and free-form metadata.
// The pipeline never creates rows. It reads them from a source, filters,
// sorts and paginates them, and mutates them only through explicit
// update/delete operations expressed as a Patch.
//
// FIELD ACCESS:
//
// Row.Field is the single accessor used by filtering and sorting. Core
// fields return their typed Go value:
//
//	id, name, status, category → string
//	value                      → float64
//	date                       → time.Time
//	tags                       → []string
//
// Any other name is looked up in Metadata. The boolean result reports
// whether the field exists on this row; callers treat absent fields
// according to their own policy.
//
// IMMUTABILITY:
//
// Rows are passed by value. Tags and Metadata are never mutated in place:
// Patch.Apply returns a new Row with freshly allocated collections, so a
// snapshot taken before an update keeps observing the old values.
package row
