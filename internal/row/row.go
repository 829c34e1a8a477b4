package row

import (
	"maps"
	"slices"
	"time"
)

// Status is the lifecycle state of a row.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
	StatusArchived Status = "archived"
)

// ValidStatuses lists the allowed status values.
var ValidStatuses = map[Status]bool{
	StatusActive:   true,
	StatusInactive: true,
	StatusPending:  true,
	StatusArchived: true,
}

// Core field names.
const (
	FieldID       = "id"
	FieldName     = "name"
	FieldStatus   = "status"
	FieldCategory = "category"
	FieldValue    = "value"
	FieldDate     = "date"
	FieldTags     = "tags"
)

// CoreFields lists the fields every row carries, in declaration order.
var CoreFields = []string{
	FieldID,
	FieldName,
	FieldStatus,
	FieldCategory,
	FieldValue,
	FieldDate,
	FieldTags,
}

// IsCoreField reports whether name is one of the fixed row fields.
func IsCoreField(name string) bool {
	return slices.Contains(CoreFields, name)
}

// Row is a single record in the dataset.
type Row struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Category string         `json:"category"`
	Value    float64        `json:"value"`
	Date     time.Time      `json:"date"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Field returns the value of the named field and whether it exists.
// Metadata entries are reachable by their key when no core field matches.
func (r Row) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldName:
		return r.Name, true
	case FieldStatus:
		return string(r.Status), true
	case FieldCategory:
		return r.Category, true
	case FieldValue:
		return r.Value, true
	case FieldDate:
		return r.Date, true
	case FieldTags:
		return r.Tags, true
	}
	if r.Metadata == nil {
		return nil, false
	}
	v, ok := r.Metadata[name]
	return v, ok
}

// Clone returns a deep-enough copy: Tags and the top level of Metadata are
// reallocated so the copy can be modified without touching r.
func (r Row) Clone() Row {
	c := r
	if r.Tags != nil {
		c.Tags = slices.Clone(r.Tags)
	}
	if r.Metadata != nil {
		c.Metadata = maps.Clone(r.Metadata)
	}
	return c
}

// FormatDate renders a timestamp the way it appears in the JSON form of a row.
func FormatDate(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// IndexOf returns the position of the row with the given id, or -1.
func IndexOf(rows []Row, id string) int {
	return slices.IndexFunc(rows, func(r Row) bool { return r.ID == id })
}

// IDs returns the ids of rows in order.
func IDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
