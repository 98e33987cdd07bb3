// Package safe provides checked integer conversions for wire-level values.
package safe

import (
	"fmt"
	"math"
)

// Integer is the set of integer kinds accepted by the conversions below.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Int32 converts v to int32, failing when v does not fit.
func Int32[T Integer](v T) (int32, error) {
	if !within(v, math.MinInt32, math.MaxInt32) {
		return 0, fmt.Errorf("value %d out of int32 range", v)
	}
	return int32(v), nil
}

// Uint32 converts v to uint32, failing on negatives and overflow.
func Uint32[T Integer](v T) (uint32, error) {
	if !within(v, 0, math.MaxUint32) {
		return 0, fmt.Errorf("value %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// within reports whether lo <= v <= hi. Signed and unsigned inputs are
// compared in their own domain so that large uint64 values never wrap.
func within[T Integer](v T, lo, hi int64) bool {
	if v < 0 {
		return int64(v) >= lo
	}
	return uint64(v) <= uint64(hi)
}
