package querystate

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/tablekit/internal/queryir"
	"github.com/roach88/tablekit/internal/row"
)

// ParseIntent builds an intent from its tag and a generic argument map,
// as decoded from YAML or JSON.
//
//	SET_PAGE         page: int
//	SET_PAGE_SIZE    page_size | pageSize: int
//	SET_SORT         field, direction (omit field to clear)
//	ADD_FILTER       field, operator, value
//	REMOVE_FILTER    field
//	SET_SEARCH       search
//	SELECT_ROW       id
//	DESELECT_ROW     id
//	SELECT_ALL       ids: [string]
//	CLEAR_FILTERS, CLEAR_SELECTION, RESET take no arguments.
func ParseIntent(name string, args map[string]any) (Intent, error) {
	p := argParser{name: strings.ToUpper(strings.TrimSpace(name)), args: args}

	switch p.name {
	case NameSetPage:
		n, err := p.int("page")
		return SetPage{Page: n}, err
	case NameSetPageSize:
		n, err := p.int("page_size", "pageSize")
		return SetPageSize{PageSize: n}, err
	case NameSetSort:
		field, _ := p.optionalString("field")
		if field == "" {
			return SetSort{}, nil
		}
		dir, _ := p.optionalString("direction")
		if dir == "" {
			dir = string(queryir.Asc)
		}
		return SetSort{Sort: &queryir.Sort{Field: field, Direction: queryir.Direction(dir)}}, nil
	case NameAddFilter:
		field, err := p.string("field")
		if err != nil {
			return nil, err
		}
		op, err := p.string("operator")
		if err != nil {
			return nil, err
		}
		return AddFilter{Filter: queryir.Filter{
			Field:    field,
			Operator: queryir.Operator(op),
			Value:    args["value"],
		}}, nil
	case NameRemoveFilter:
		field, err := p.string("field")
		return RemoveFilter{Field: field}, err
	case NameClearFilters:
		return ClearFilters{}, nil
	case NameSetSearch:
		s, _ := p.optionalString("search")
		return SetSearch{Search: s}, nil
	case NameSelectRow:
		id, err := p.string("id")
		return SelectRow{ID: id}, err
	case NameDeselectRow:
		id, err := p.string("id")
		return DeselectRow{ID: id}, err
	case NameSelectAll:
		ids, err := p.strings("ids")
		return SelectAll{IDs: ids}, err
	case NameClearSelection:
		return ClearSelection{}, nil
	case NameReset:
		return Reset{}, nil
	}
	return nil, fmt.Errorf("unknown intent %q", name)
}

type argParser struct {
	name string
	args map[string]any
}

func (p argParser) lookup(keys ...string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := p.args[k]; ok {
			return v, k, true
		}
	}
	return nil, keys[0], false
}

func (p argParser) int(keys ...string) (int, error) {
	v, key, ok := p.lookup(keys...)
	if !ok {
		return 0, fmt.Errorf("%s: missing %q", p.name, key)
	}
	f, ok := row.ToFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %q must be an integer, got %v", p.name, key, v)
	}
	return int(f), nil
}

func (p argParser) string(key string) (string, error) {
	s, ok := p.optionalString(key)
	if !ok {
		return "", fmt.Errorf("%s: missing %q", p.name, key)
	}
	return s, nil
}

func (p argParser) optionalString(key string) (string, bool) {
	v, ok := p.args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), true
	}
	return s, true
}

func (p argParser) strings(key string) ([]string, error) {
	v, ok := p.args[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s: %s[%d] must be a string, got %T", p.name, key, i, e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: %q must be a list of strings, got %T", p.name, key, v)
}
