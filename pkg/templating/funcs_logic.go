package templating

import (
	"errors"
	"fmt"
)

// repeat returns a slice of integers from 0 to count-1.
func repeat(count any) ([]int, error) {
	n, err := toInt(count)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return []int{}, nil
	}
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s, nil
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// dict builds a map from alternating keys and values, which is how a
// template passes several variables to include or hook.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict expects an even number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %T", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// defaultValue returns val, or def when val is unset. Written for pipelines:
// {{.title | default "Untitled"}}.
func defaultValue(def, val any) any {
	if isSet(val) {
		return val
	}
	return def
}
