// Package resolver turns a dataset and a query into one page of rows.
//
// Resolution is a fixed pipeline:
//
//	rows → ApplyFilters → ApplySort → ApplyPagination → Page
//
// Every step is pure and synchronous. The resolver never returns errors:
// malformed queries degrade to permissive behavior (unknown operators and
// filters on absent fields pass every row, out-of-range pages are empty).
// Use queryir.Validate to reject such queries up front.
//
// String sorting is locale-aware through golang.org/x/text/collate; the
// default language is English and can be changed with WithLanguage.
package resolver
