package query

import (
	"encoding/json"
	"reflect"
	"time"
)

// Value classes in the order a document store sorts them. Ordering
// comparisons only succeed between values of the same class.
const (
	classNull = iota
	classBool
	classNumber
	classTimestamp
	classString
	classBytes
	classArray
	classMap
	classOther
)

type timeValue interface {
	AsTime() time.Time
}

// ToFloat64 converts a numeric value to float64. Unlike a lenient
// conversion, strings are never treated as numbers.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case timeValue:
		return t.AsTime(), true
	}
	return time.Time{}, false
}

func valueClass(v any) int {
	if v == nil {
		return classNull
	}
	if _, ok := ToFloat64(v); ok {
		return classNumber
	}
	if _, ok := toTime(v); ok {
		return classTimestamp
	}
	switch v.(type) {
	case bool:
		return classBool
	case string:
		return classString
	case []byte:
		return classBytes
	case []any:
		return classArray
	case map[string]any:
		return classMap
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return classArray
	case reflect.Map:
		return classMap
	}
	return classOther
}

// Compare orders a against b. It reports false when the two values are not
// of the same class or the class has no ordering.
func Compare(a, b any) (int, bool) {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		return 0, false
	}
	switch ca {
	case classNull:
		return 0, true
	case classBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case classNumber:
		x, _ := ToFloat64(a)
		y, _ := ToFloat64(b)
		return cmpOrdered(x, y), true
	case classTimestamp:
		x, _ := toTime(a)
		y, _ := toTime(b)
		return x.Compare(y), true
	case classString:
		return cmpOrdered(a.(string), b.(string)), true
	case classBytes:
		return cmpOrdered(string(a.([]byte)), string(b.([]byte))), true
	case classArray:
		x, y := reflect.ValueOf(a), reflect.ValueOf(b)
		for i := 0; i < x.Len() && i < y.Len(); i++ {
			c, ok := Compare(x.Index(i).Interface(), y.Index(i).Interface())
			if !ok {
				return SortCompare(x.Index(i).Interface(), y.Index(i).Interface()), true
			}
			if c != 0 {
				return c, true
			}
		}
		return cmpOrdered(x.Len(), y.Len()), true
	}
	return 0, false
}

// SortCompare gives a total order over arbitrary values: values of different
// classes order by class, values of the same class by Compare.
func SortCompare(a, b any) int {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		return cmpOrdered(ca, cb)
	}
	c, _ := Compare(a, b)
	return c
}

// Equal reports whether two values are equal. Numbers compare by value
// regardless of their Go type; arrays and maps compare deeply.
func Equal(a, b any) bool {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		return false
	}
	switch ca {
	case classNumber, classTimestamp, classBool, classString, classBytes, classNull:
		c, ok := Compare(a, b)
		return ok && c == 0
	case classArray:
		x, y := reflect.ValueOf(a), reflect.ValueOf(b)
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !Equal(x.Index(i).Interface(), y.Index(i).Interface()) {
				return false
			}
		}
		return true
	case classMap:
		x, y := reflect.ValueOf(a), reflect.ValueOf(b)
		if x.Len() != y.Len() {
			return false
		}
		if x.Type().Key() != y.Type().Key() {
			return reflect.DeepEqual(a, b)
		}
		iter := x.MapRange()
		for iter.Next() {
			other := y.MapIndex(iter.Key())
			if !other.IsValid() || !Equal(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func cmpOrdered[T int | float64 | string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
