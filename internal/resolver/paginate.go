package resolver

import (
	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// ApplyPagination returns rows[(page-1)*pageSize : page*pageSize], clipped
// to the available range. Pages past the end, page < 1 and pageSize < 1
// all yield an empty, non-nil slice. Nothing is corrected.
//
// Returned rows are deep copies; callers may modify them freely.
func ApplyPagination(rows []row.Row, q queryir.Query) []row.Row {
	if q.Page < 1 || q.PageSize < 1 || len(rows) == 0 {
		return []row.Row{}
	}
	// Compare page indexes rather than offsets so a huge page cannot
	// overflow (page-1)*pageSize.
	if q.Page-1 > (len(rows)-1)/q.PageSize {
		return []row.Row{}
	}
	start := q.Offset()
	end := start + min(q.PageSize, len(rows)-start)

	out := make([]row.Row, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, r.Clone())
	}
	return out
}
