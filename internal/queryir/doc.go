// Package queryir defines the Query value object consumed by the resolver,
// the query-state store and the fetch adapter.
//
// A Query describes a view of the dataset:
//
//	Query{
//	  Page:     1,
//	  PageSize: 10,
//	  Sort:     &Sort{Field: "value", Direction: Asc},
//	  Filters: []Filter{
//	    {Field: "status", Operator: OpEquals, Value: "active"},
//	    {Field: "value", Operator: OpGte, Value: 100},
//	  },
//	  Search: "button",
//	}
//
// CONSTRUCTION VS RESOLUTION:
//
// Queries are plain values. Nothing validates them at construction time:
// a Query with Page 0 or an unknown operator is representable, and the
// resolver handles it permissively (empty slice, always-true filter).
// Validate reports those problems for callers that want to fail loudly.
//
// CACHE KEYS:
//
// Key computes a stable identity for a query from its canonical JSON
// (sorted keys, NFC-normalized strings, no HTML escaping) hashed with
// SHA-256 under a domain prefix. Two queries that resolve identically
// because their fields are equal produce the same key regardless of how
// their filter values were typed (int 5 and float 5.0 hash the same).
package queryir
