package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ToInt32 casts v to int32 the way SQL engines cast to INT: it never fails
// loudly. ok is false when v cannot be represented, and the caller stores a
// null.
//
//   - integers are kept when they fit int32
//   - floats are truncated toward zero when finite and in range
//   - strings (and byte strings) are trimmed and must look like
//     [+-]digits or [+-]digits.digits; the fraction is truncated
//   - true and false become 1 and 0
//   - anything else (timestamps, nil) is not castable
func ToInt32(v any) (int32, bool) {
	switch x := v.(type) {
	case int32:
		return x, true
	case int64:
		return fromInt64(x)
	case int:
		return fromInt64(int64(x))
	case int8:
		return int32(x), true
	case int16:
		return int32(x), true
	case uint8:
		return int32(x), true
	case uint16:
		return int32(x), true
	case uint32:
		return fromInt64(int64(x))
	case uint64:
		if x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		return fromString(x)
	case []byte:
		return fromString(string(x))
	}
	return 0, false
}

func fromInt64(n int64) (int32, bool) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

func fromFloat(f float64) (int32, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt32 || t > math.MaxInt32 {
		return 0, false
	}
	return int32(t), true
}

func fromString(s string) (int32, bool) {
	s = strings.TrimSpace(s)
	whole, frac, hasDot := strings.Cut(s, ".")
	digits := strings.TrimLeft(whole, "+-")
	if len(whole)-len(digits) > 1 || !allDigits(digits) {
		return 0, false
	}
	if hasDot && !allDigits(frac) {
		return 0, false
	}
	n, err := strconv.ParseInt(whole, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

// allDigits reports whether s is a non-empty run of ASCII digits.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
