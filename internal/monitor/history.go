package monitor

import "golang.org/x/exp/slices"

// DefaultHistoryCapacity is the number of samples kept by the monitor for trend display.
const DefaultHistoryCapacity = 10

// RollingHistory keeps the most recent values up to a fixed capacity, evicting the oldest first.
// It is not safe for concurrent use.
type RollingHistory[T any] struct {
	values   []T
	capacity int
}

func NewRollingHistory[T any](capacity int) *RollingHistory[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RollingHistory[T]{
		values:   make([]T, 0, capacity),
		capacity: capacity,
	}
}

func (h *RollingHistory[T]) Append(value T) {
	if len(h.values) == h.capacity {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
	h.values = append(h.values, value)
}

// Values returns a copy of the history, oldest first.
func (h *RollingHistory[T]) Values() []T {
	return slices.Clone(h.values)
}

func (h *RollingHistory[T]) Len() int {
	return len(h.values)
}
