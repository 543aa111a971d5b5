package pointer

import "golang.org/x/exp/constraints"

func Pointer[T any](v T) *T {
	return &v
}

// Uint64 returns a pointer to v converted to uint64, or nil if v is negative.
func Uint64[T constraints.Integer](v T) *uint64 {
	if v < 0 {
		return nil
	}
	u := uint64(v)
	return &u
}
