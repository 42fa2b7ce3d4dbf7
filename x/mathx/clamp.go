// Package mathx holds the small numeric helpers the drivers share.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi], swapping the bounds if given reversed.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Min(Max(v, lo), hi)
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
