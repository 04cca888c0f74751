// Package query evaluates list requests against a collection: equality
// filters, an optional single-key sort and skip/limit pagination.
package query

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/stevemurr/stub-server/record"
)

// Reserved parameter names. They are matched without regard to case.
const (
	ParamSkip    = "skip"
	ParamLimit   = "limit"
	ParamOrderBy = "orderBy"
)

// ErrMalformedParameter is wrapped by errors for skip or limit values that
// are not non-negative integers.
var ErrMalformedParameter = errors.New("malformed query parameter")

// ParameterError describes a rejected pagination parameter.
type ParameterError struct {
	Name  string
	Value string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %q must be a non-negative integer", e.Name, e.Value)
}

func (e *ParameterError) Unwrap() error { return ErrMalformedParameter }

// Params maps a parameter name to every value supplied for it, in request
// order. url.Values converts directly.
type Params map[string][]string

// Result is one page of a query.
type Result struct {
	Items []record.Record
	// Total counts the records that passed filtering, before pagination.
	Total int
}

// Execute filters, sorts and paginates records. records is not modified and
// the returned page never shares its backing array.
//
// Every parameter except skip, limit, orderBy and names starting with "$" is
// a filter on the field it names (dot paths reach into nested objects). Each
// value of a parameter is applied as its own filter, so repeating a name with
// different values narrows the result rather than widening it.
func Execute(records []record.Record, params Params) (Result, error) {
	skip, hasSkip, err := params.count(ParamSkip)
	if err != nil {
		return Result{}, err
	}
	limit, hasLimit, err := params.count(ParamLimit)
	if err != nil {
		return Result{}, err
	}

	filters := params.filters()
	items := make([]record.Record, 0, len(records))
	for _, r := range records {
		if matchAll(r, filters) {
			items = append(items, r)
		}
	}
	total := len(items)

	if raw, ok := params.first(ParamOrderBy); ok {
		path, desc := ParseOrderBy(raw)
		sortRecords(items, path, desc)
	}

	if hasSkip {
		if skip >= len(items) {
			items = items[:0]
		} else {
			items = items[skip:]
		}
	}
	if hasLimit && limit < len(items) {
		items = items[:limit]
	}
	return Result{Items: items, Total: total}, nil
}

// ParseOrderBy splits an orderBy value of the form "path[ desc]".
func ParseOrderBy(raw string) (path string, desc bool) {
	v := strings.TrimSpace(raw)
	desc = len(v) > len(" desc") && strings.HasSuffix(v, " desc")
	path = v
	if i := strings.IndexByte(v, ' '); i >= 0 {
		path = v[:i]
	}
	return path, desc
}

type filter struct {
	field string
	value string
}

// reserved reports whether name is not a field filter.
func reserved(name string) bool {
	return strings.HasPrefix(name, "$") ||
		strings.EqualFold(name, ParamSkip) ||
		strings.EqualFold(name, ParamLimit) ||
		strings.EqualFold(name, ParamOrderBy)
}

func (p Params) filters() []filter {
	var out []filter
	for name, values := range p {
		if reserved(name) {
			continue
		}
		for _, v := range values {
			out = append(out, filter{field: name, value: v})
		}
	}
	return out
}

func matchAll(r record.Record, filters []filter) bool {
	for _, f := range filters {
		v, ok := r.Lookup(f.field)
		if !ok || v.IsNull() {
			return false
		}
		if !strings.EqualFold(v.String(), f.value) {
			return false
		}
	}
	return true
}

// first returns the first value of a reserved parameter. An exact-case match
// wins; otherwise the alphabetically first case-insensitive match is used.
func (p Params) first(name string) (string, bool) {
	if values := p[name]; len(values) > 0 {
		return values[0], true
	}
	names := make([]string, 0, len(p))
	for k := range p {
		if strings.EqualFold(k, name) && len(p[k]) > 0 {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return p[names[0]][0], true
}

func (p Params) count(name string) (int, bool, error) {
	raw, ok := p.first(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, &ParameterError{Name: name, Value: raw}
	}
	return n, true, nil
}

type keyed struct {
	rec record.Record
	key *record.Value
}

// sortRecords sorts items in place by the value at path. Equal keys keep
// their current order in both directions.
func sortRecords(items []record.Record, path string, desc bool) {
	entries := make([]keyed, len(items))
	for i, r := range items {
		entries[i] = keyed{rec: r, key: sortKey(r, path)}
	}
	slices.SortStableFunc(entries, func(a, b keyed) int {
		if desc {
			return Compare(b.key, a.key)
		}
		return Compare(a.key, b.key)
	})
	for i := range entries {
		items[i] = entries[i].rec
	}
}
