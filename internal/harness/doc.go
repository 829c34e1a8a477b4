// Package harness runs YAML scenarios against the query pipeline.
//
// A scenario seeds a fresh in-memory store with a dataset, dispatches
// query intents, performs fetches and mutations through the adapter, and
// checks the resulting trace and final state.
//
// # Scenario Format
//
//	name: browse_active
//	description: "Active rows, two per page, highest value first"
//	dataset: fixture            # fixture | sample | path relative to the file
//	steps:
//	  - intent: SET_PAGE_SIZE
//	    args: { page_size: 2 }
//	  - fetch_page: true
//	    expect: { ids: [r1, r4], total: 3 }
//	  - update_row: r1
//	    patch: { status: archived }
//	  - fetch_row: r9
//	    expect: { code: NOT_FOUND }
//	assertions:
//	  - type: trace_order
//	    steps: [SET_PAGE_SIZE, fetch_page]
//	  - type: final_row
//	    id: r1
//	    expect: { status: archived }
//
// # Assertion Types
//
//   - trace_contains: a step (intent name or step kind) appears in the trace
//   - trace_order: steps appear in the given order
//   - trace_count: a step appears exactly N times
//   - final_query: fields of the final query match
//   - final_selection: the final selection equals the given ids
//   - final_row: the persisted row matches, or is absent
//
// # Determinism
//
// Scenarios run without simulated latency or failures and with sequential
// request ids, so traces are stable enough for golden comparison.
package harness
