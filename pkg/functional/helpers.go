// Package f holds the small generic helpers shared across the engine.
package f

import "slices"

// Set tracks membership of comparable items. The zero value is not usable;
// construct with NewSet.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable]() Set[T] {
	return make(Set[T])
}

func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

func (s Set[T]) Remove(item T) {
	delete(s, item)
}

func (s Set[T]) Contains(item T) bool {
	_, found := s[item]
	return found
}

// Map applies fn to every item and returns the results in order.
func Map[T, U any](items []T, fn func(T) U) []U {
	mapped := make([]U, len(items))
	for i, item := range items {
		mapped[i] = fn(item)
	}
	return mapped
}

// Filtered returns the items for which keep is true, preserving order.
func Filtered[T any](items []T, keep func(T) bool) []T {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// RemoveDuplicates drops every item after its first occurrence, in place.
func RemoveDuplicates[T comparable](items []T) []T {
	seen := NewSet[T]()
	return slices.DeleteFunc(items, func(item T) bool {
		duplicate := seen.Contains(item)
		seen.Add(item)
		return duplicate
	})
}

// RemoveValue drops every occurrence of value, in place.
func RemoveValue[T comparable](items []T, value T) []T {
	return slices.DeleteFunc(items, func(item T) bool {
		return item == value
	})
}
