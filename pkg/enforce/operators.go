package enforce

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"fleetgrid/warden/pkg/rules"
)

// compare applies a rule operator to a resolved field value. defined is
// false when the field could not be resolved from the payload or lookup;
// an undefined value compares false under every operator except not-equals,
// which is vacuously true.
func compare(op rules.Operator, actual any, defined bool, expected any) (bool, error) {
	if !defined {
		return op == rules.OperatorNotEqual, nil
	}

	switch op {
	case rules.OperatorEqual:
		return compareEqual(actual, expected)

	case rules.OperatorNotEqual:
		equal, err := compareEqual(actual, expected)
		return !equal, err

	case rules.OperatorGreaterThan:
		a, b, err := toNumeric(actual, expected)
		if err != nil {
			return false, err
		}
		return a > b, nil

	case rules.OperatorLessThan:
		a, b, err := toNumeric(actual, expected)
		if err != nil {
			return false, err
		}
		return a < b, nil

	case rules.OperatorGreaterEqual:
		a, b, err := toNumeric(actual, expected)
		if err != nil {
			return false, err
		}
		return a >= b, nil

	case rules.OperatorLessEqual:
		a, b, err := toNumeric(actual, expected)
		if err != nil {
			return false, err
		}
		return a <= b, nil

	case rules.OperatorIn:
		return compareIn(actual, expected)

	case rules.OperatorContains:
		return compareContains(actual, expected)

	case rules.OperatorMatches:
		return compareMatches(actual, expected)

	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func compareEqual(actual, expected any) (bool, error) {
	if actual == nil && expected == nil {
		return true, nil
	}
	if actual == nil || expected == nil {
		return false, nil
	}

	// Numeric comparison first so int and float64 forms of the same value
	// compare equal regardless of how the payload was decoded.
	a, aErr := convertToFloat64(actual)
	b, bErr := convertToFloat64(expected)
	if aErr == nil && bErr == nil {
		return a == b, nil
	}

	return reflect.DeepEqual(actual, expected), nil
}

func compareIn(actual, expected any) (bool, error) {
	list := reflect.ValueOf(expected)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return false, fmt.Errorf("in operator requires a list, got %T", expected)
	}
	for i := 0; i < list.Len(); i++ {
		equal, err := compareEqual(actual, list.Index(i).Interface())
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

func compareContains(actual, expected any) (bool, error) {
	if s, ok := actual.(string); ok {
		sub, ok := expected.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string requires a string value, got %T", expected)
		}
		return strings.Contains(s, sub), nil
	}

	list := reflect.ValueOf(actual)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return false, fmt.Errorf("contains requires a string or list, got %T", actual)
	}
	for i := 0; i < list.Len(); i++ {
		equal, err := compareEqual(list.Index(i).Interface(), expected)
		if err != nil {
			return false, err
		}
		if equal {
			return true, nil
		}
	}
	return false, nil
}

func compareMatches(actual, expected any) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("matches requires a string field, got %T", actual)
	}
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("matches requires a string pattern, got %T", expected)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

func toNumeric(actual, expected any) (float64, float64, error) {
	a, err := convertToFloat64(actual)
	if err != nil {
		return 0, 0, fmt.Errorf("field value: %w", err)
	}
	b, err := convertToFloat64(expected)
	if err != nil {
		return 0, 0, fmt.Errorf("comparison value: %w", err)
	}
	return a, b, nil
}

func convertToFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
}
