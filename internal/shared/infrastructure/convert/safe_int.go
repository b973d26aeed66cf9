// Package convert provides safe integer conversions for values crossing
// driver and arithmetic boundaries.
package convert

import (
	"fmt"
	"math"
)

// IntToInt32Clamped converts an int to int32, clamping to min/max bounds if overflow.
func IntToInt32Clamped(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// IntToUintSafe converts an int to uint, panicking if negative.
// Use this only for values that are guaranteed by business logic to be non-negative.
func IntToUintSafe(v int) uint {
	if v < 0 {
		panic(fmt.Sprintf("cannot convert negative int to uint: %d", v))
	}
	return uint(v)
}
