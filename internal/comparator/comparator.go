// Package comparator builds total-order functions over documents from a list
// of sort keys.
package comparator

import (
	"fmt"
	"sync"

	"github.com/syntrixbase/livequery/pkg/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator returns -1, 0 or 1 when a sorts before, together with or after b.
type Comparator func(a, b model.Document) int

type options struct {
	locale language.Tag
}

// Option configures Build.
type Option func(*options)

// WithLocale selects the collation used for string fields.
func WithLocale(tag language.Tag) Option {
	return func(o *options) {
		o.locale = tag
	}
}

// Build turns an ordered list of order fields into a Comparator.
// The first field with unequal values decides; all-equal yields 0.
func Build(order []model.Order, opts ...Option) Comparator {
	o := options{locale: language.Und}
	for _, opt := range opts {
		opt(&o)
	}

	fields := make([]model.Order, len(order))
	copy(fields, order)

	// collate.Collator keeps internal buffers and is not safe for concurrent use
	var mu sync.Mutex
	coll := collate.New(o.locale)
	compareStrings := func(a, b string) int {
		mu.Lock()
		defer mu.Unlock()
		return coll.CompareString(a, b)
	}

	return func(a, b model.Document) int {
		for _, f := range fields {
			av, aok := lookup(a, f.Field)
			bv, bok := lookup(b, f.Field)

			var c int
			switch f.Type {
			case model.TypeNumber:
				an, aIsNum := toFloat(av)
				bn, bIsNum := toFloat(bv)
				c = compareNumbers(an, aok && aIsNum, bn, bok && bIsNum)
			default:
				as, aIsStr := toString(av)
				bs, bIsStr := toString(bv)
				switch {
				case aok && aIsStr && bok && bIsStr:
					if as != bs {
						c = sign(compareStrings(as, bs))
					}
				default:
					c = comparePresence(aok && aIsStr, bok && bIsStr)
				}
			}

			if c != 0 {
				return c * f.Sign()
			}
		}
		return 0
	}
}

func lookup(doc model.Document, field string) (interface{}, bool) {
	if doc == nil {
		return nil, false
	}
	v, ok := doc.Lookup(field)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func compareNumbers(a float64, aok bool, b float64, bok bool) int {
	if !aok || !bok {
		return comparePresence(aok, bok)
	}
	return sign64(a - b)
}

// comparePresence orders missing values before present ones.
func comparePresence(aok, bok bool) int {
	switch {
	case aok == bok:
		return 0
	case !aok:
		return -1
	default:
		return 1
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return "", false
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func sign64(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	default:
		return 0
	}
}
