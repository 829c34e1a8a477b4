package resolver

import (
	"golang.org/x/text/language"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// Page is one resolved slice of the filtered and sorted dataset.
type Page struct {
	Rows       []row.Row `json:"rows"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// Clone returns a copy of p whose rows share no state with p.
func (p Page) Clone() Page {
	c := p
	if p.Rows != nil {
		c.Rows = make([]row.Row, len(p.Rows))
		for i, r := range p.Rows {
			c.Rows[i] = r.Clone()
		}
	}
	return c
}

// Resolver applies queries to datasets. The zero value is not usable; use New.
//
// A Resolver holds only configuration and is safe for concurrent use.
type Resolver struct {
	lang language.Tag
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLanguage sets the collation language for string sorting.
func WithLanguage(tag language.Tag) Option {
	return func(r *Resolver) {
		r.lang = tag
	}
}

// New creates a Resolver. The default collation language is English.
func New(opts ...Option) *Resolver {
	r := &Resolver{lang: language.English}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Language returns the collation language.
func (r *Resolver) Language() language.Tag {
	return r.lang
}

// Resolve filters, sorts and paginates rows.
// Total counts the filtered rows; TotalPages is 0 when PageSize < 1.
func (r *Resolver) Resolve(rows []row.Row, q queryir.Query) Page {
	filtered := r.ApplyFilters(rows, q)
	sorted := r.ApplySort(filtered, q)
	paged := ApplyPagination(sorted, q)

	return Page{
		Rows:       paged,
		Total:      len(sorted),
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: TotalPages(len(sorted), q.PageSize),
	}
}

// TotalPages returns ceil(total/pageSize), or 0 when pageSize < 1.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

var defaultResolver = New()

// Resolve resolves with the default English resolver.
func Resolve(rows []row.Row, q queryir.Query) Page {
	return defaultResolver.Resolve(rows, q)
}

// ApplyFilters filters with the default resolver.
func ApplyFilters(rows []row.Row, q queryir.Query) []row.Row {
	return defaultResolver.ApplyFilters(rows, q)
}

// ApplySort sorts with the default resolver.
func ApplySort(rows []row.Row, q queryir.Query) []row.Row {
	return defaultResolver.ApplySort(rows, q)
}
