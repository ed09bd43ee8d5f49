package util

import "reflect"

func IsZero(i interface{}) bool {
	if i == nil {
		return true
	}
	return IsZeroVal(reflect.ValueOf(i))
}

// IsZeroVal reports whether v holds zero value of its type.
// Unlike comparison with reflect.Zero it does not panic on non comparable types.
func IsZeroVal(v reflect.Value) bool {
	return v.IsZero()
}
