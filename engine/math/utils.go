package math

import "golang.org/x/exp/constraints"

// Clamp limits v to [low, high]. low wins when the range is inverted.
func Clamp[T constraints.Ordered](v, low, high T) T {
	return max(low, min(v, high))
}
