// Package schema validates datasets against the CUE #Row definition
// embedded from row.cue.
//
// Validation collects every problem instead of stopping at the first, so
// an import can report a whole file at once:
//
//	s, _ := schema.Default()
//	if errs := s.ValidateJSON(data); len(errs) > 0 {
//	    return errs
//	}
package schema
