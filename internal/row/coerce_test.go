package row

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToNumber(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 1.5, 1.5},
		{"int", 42, 42},
		{"numeric string", " 7.25 ", 7.25},
		{"time", ts, float64(ts.UnixMilli())},
		{"rfc3339 string", "2024-01-02T03:04:05Z", float64(ts.UnixMilli())},
		{"json number", json.Number("3"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToNumber(tt.in))
		})
	}

	for _, v := range []any{"abc", nil, true, []string{"1"}} {
		assert.True(t, math.IsNaN(ToNumber(v)), "%#v", v)
	}
}

func TestStringify(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Button", "Button"},
		{StatusActive, "active"},
		{120, "120"},
		{75.5, "75.5"},
		{ts, "2024-01-02T03:04:05Z"},
		{[]string{"ui", "form"}, "ui,form"},
		{[]any{"a", 1, 2.5}, "a,1,2.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stringify(tt.in), "%#v", tt.in)
	}
}
