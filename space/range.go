package space

import "golang.org/x/exp/constraints"

// Range is an inclusive interval [Lower, Upper].
// Either end may be infinite for float ranges.
type Range[T constraints.Integer | constraints.Float] struct {
	Lower T
	Upper T
}

// Contains reports whether v lies inside the range, ends included.
func (r Range[T]) Contains(v T) bool {
	return v >= r.Lower && v <= r.Upper
}

// Empty reports whether the range holds no values.
func (r Range[T]) Empty() bool {
	return r.Lower > r.Upper
}

// Span returns Upper - Lower.
func (r Range[T]) Span() T {
	return r.Upper - r.Lower
}

// Clamp returns v limited to the range.
func (r Range[T]) Clamp(v T) T {
	return min(max(v, r.Lower), r.Upper)
}
