package overlay

import (
	"reflect"
)

// Equal reports whether two field values are the same. Numbers compare by
// value regardless of their Go type, so that an int set by the caller equals
// the float64 a JSON record reads back. Slices and string-keyed maps are
// compared element by element with the same rules, everything else deeply.
func Equal(a, b interface{}) bool {
	if na, ok := toNumber(a); ok {
		if nb, ok := toNumber(b); ok {
			return na.equal(nb)
		}
		return false
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isList(ra) && isList(rb):
		return equalLists(ra, rb)
	case isObject(ra) && isObject(rb):
		return equalObjects(ra, rb)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func isObject(v reflect.Value) bool {
	return v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String
}

func equalLists(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !Equal(a.Index(i).Interface(), b.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func equalObjects(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	iter := a.MapRange()
	for iter.Next() {
		other := b.MapIndex(reflect.ValueOf(iter.Key().String()).Convert(b.Type().Key()))
		if !other.IsValid() || !Equal(iter.Value().Interface(), other.Interface()) {
			return false
		}
	}
	return true
}

type number struct {
	kind uint8 // 0: int, 1: uint, 2: float
	i    int64
	u    uint64
	f    float64
}

func toNumber(v interface{}) (number, bool) {
	if v == nil {
		return number{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{kind: 0, i: rv.Int()}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return number{kind: 1, u: rv.Uint()}, true
	case reflect.Float32, reflect.Float64:
		return number{kind: 2, f: rv.Float()}, true
	default:
		return number{}, false
	}
}

func (n number) float() float64 {
	switch n.kind {
	case 0:
		return float64(n.i)
	case 1:
		return float64(n.u)
	default:
		return n.f
	}
}

func (n number) equal(o number) bool {
	switch {
	case n.kind == 0 && o.kind == 0:
		return n.i == o.i
	case n.kind == 1 && o.kind == 1:
		return n.u == o.u
	case n.kind == 0 && o.kind == 1:
		return n.i >= 0 && uint64(n.i) == o.u
	case n.kind == 1 && o.kind == 0:
		return o.i >= 0 && uint64(o.i) == n.u
	default:
		return n.float() == o.float()
	}
}
