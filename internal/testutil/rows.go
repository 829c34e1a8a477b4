package testutil

import (
	"time"

	"github.com/roach88/tablekit/internal/row"
)

// Day returns midnight UTC on the given day of January 2024.
func Day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

// Rows returns a small fixed dataset covering every status and a few
// metadata keys. Each call returns fresh copies.
func Rows() []row.Row {
	return []row.Row{
		{ID: "r1", Name: "Primary Button", Status: row.StatusActive, Category: "Button", Value: 120, Date: Day(3), Tags: []string{"primary", "ui"}},
		{ID: "r2", Name: "Text Input", Status: row.StatusPending, Category: "Input", Value: 40, Date: Day(1), Tags: []string{"form"}},
		{ID: "r3", Name: "Alert Banner", Status: row.StatusArchived, Category: "Feedback", Value: 75.5, Date: Day(7), Metadata: map[string]any{"owner": "design"}},
		{ID: "r4", Name: "Secondary Button", Status: row.StatusActive, Category: "Button", Value: 90, Date: Day(5), Tags: []string{"ui"}},
		{ID: "r5", Name: "Modal Dialog", Status: row.StatusInactive, Category: "Overlay", Value: 0, Date: Day(2)},
		{ID: "r6", Name: "Checkbox", Status: row.StatusActive, Category: "Input", Value: 15, Date: Day(9), Tags: []string{"form"}},
	}
}
