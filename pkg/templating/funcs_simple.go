package templating

import (
	"fmt"
	"reflect"
	"strconv"
)

// toInt converts template numbers to int. Variables decoded from JSON or YAML
// arrive as float64 or strings, so those are accepted as well.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return i, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int(rv.Float()), nil
	default:
		return 0, fmt.Errorf("cannot use %T as a number", v)
	}
}

func ints(a, b any) (int, int, error) {
	x, err := toInt(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := toInt(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// add returns a + b.
func add(a, b any) (int, error) {
	x, y, err := ints(a, b)
	return x + y, err
}

// sub returns a - b.
func sub(a, b any) (int, error) {
	x, y, err := ints(a, b)
	return x - y, err
}

// div returns a / b (integer division). Returns 0 if b is 0.
func div(a, b any) (int, error) {
	x, y, err := ints(a, b)
	if err != nil || y == 0 {
		return 0, err
	}
	return x / y, nil
}

// mult returns a * b.
func mult(a, b any) (int, error) {
	x, y, err := ints(a, b)
	return x * y, err
}

// maxInt returns the larger of a and b.
func maxInt(a, b any) (int, error) {
	x, y, err := ints(a, b)
	return max(x, y), err
}

// minInt returns the smaller of a and b.
func minInt(a, b any) (int, error) {
	x, y, err := ints(a, b)
	return min(x, y), err
}

// mod returns a % b. Returns 0 if b is 0.
func mod(a, b any) (int, error) {
	x, y, err := ints(a, b)
	if err != nil || y == 0 {
		return 0, err
	}
	return x % y, nil
}

func inc(i any) (int, error) {
	x, err := toInt(i)
	return x + 1, err
}

func dec(i any) (int, error) {
	x, err := toInt(i)
	return x - 1, err
}

// isSet returns true if a value is not its zero value.
func isSet(val any) bool {
	v := reflect.ValueOf(val)
	if !v.IsValid() {
		return false
	}
	return !v.IsZero()
}
