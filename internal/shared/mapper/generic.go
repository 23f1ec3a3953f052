// Package mapper holds slice helpers for model/entity/DTO conversion.
package mapper

import "fmt"

// MapSlice applies fn to every element. A nil input yields nil.
func MapSlice[T any, R any](items []T, fn func(T) R) []R {
	if items == nil {
		return nil
	}
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

// MapSlicePtrWithID maps pointer elements, skipping nil inputs and outputs.
// A mapping error is reported with the failing element's id.
func MapSlicePtrWithID[T any, R any, ID any](
	items []*T,
	fn func(*T) (*R, error),
	getID func(*T) ID,
) ([]*R, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]*R, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		mapped, err := fn(item)
		if err != nil {
			return nil, fmt.Errorf("failed to map item ID %v: %w", getID(item), err)
		}
		if mapped != nil {
			out = append(out, mapped)
		}
	}
	return out, nil
}
