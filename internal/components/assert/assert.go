package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when value is nil, including typed nil pointers hidden
// behind an interface.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("expected %T to be not nil", value))
		}
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

func Positive[T ~int | ~int64 | ~float64](value T) {
	if value <= 0 {
		panic(fmt.Sprintf("expected %v to be positive", value))
	}
}
