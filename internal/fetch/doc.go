// Package fetch provides the remote fetch adapter: the resolver wrapped in
// simulated network latency, injected failures, a single-entry dataset
// cache and a single-writer mutation queue.
//
// OPERATIONS:
//
//	FetchPage(ctx, query)      read latency, error roll, cache, resolve
//	FetchRow(ctx, id)          read latency, error roll, cache, lookup
//	UpdateRow(ctx, id, patch)  write latency, error roll, queued merge
//	DeleteRow(ctx, id)         write latency, error roll, queued removal
//
// Every operation returns *Error values from a fixed taxonomy (see Code).
// Simulated failures carry Simulated=true and are always retryable;
// deterministic NOT_FOUND and BAD_REQUEST are not.
//
// DETERMINISM:
//
// Randomness comes from a Chance and waiting from a Sleeper, both injected
// through options. Tests pin both to make latency and failures exact.
//
// CACHE:
//
// The dataset is loaded from the Source on first read and kept until
// Invalidate. Mutations write the merged row back into the cached slice
// (copy-on-write), so reads after a write observe it without a reload.
package fetch
