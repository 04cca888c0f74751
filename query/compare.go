package query

import (
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"

	"github.com/stevemurr/stub-server/record"
)

// Compare orders two sort keys. A nil key is missing and sorts before any
// present key. Two numbers compare as exact decimals; any other pair compares
// the text of both values, ignoring case.
func Compare(a, b *record.Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if a.Kind() == record.Number && b.Kind() == record.Number {
		if c, ok := compareDecimal(a.Literal(), b.Literal()); ok {
			return c
		}
	}
	return compareFold(a.String(), b.String())
}

func compareDecimal(a, b string) (int, bool) {
	var x, y apd.Decimal
	if _, _, err := x.SetString(a); err != nil {
		return 0, false
	}
	if _, _, err := y.SetString(b); err != nil {
		return 0, false
	}
	return x.Cmp(&y), true
}

// compareFold compares code points after simple upper-case mapping, so
// "apple" < "Banana" and "_" sorts after letters.
func compareFold(a, b string) int {
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		ua, ub := unicode.ToUpper(ra), unicode.ToUpper(rb)
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
		a, b = a[na:], b[nb:]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// sortKey resolves path on r. Absent fields, nulls, objects and arrays have
// no key.
func sortKey(r record.Record, path string) *record.Value {
	v, ok := r.Lookup(path)
	if !ok || !v.IsScalar() {
		return nil
	}
	return &v
}
