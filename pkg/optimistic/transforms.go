package optimistic

// Common transforms over slices of values identified by a key function.
// All of them return a new slice and leave the input untouched.

func Prepend[T any](item T) func([]T) []T {
	return func(s []T) []T {
		out := make([]T, 0, len(s)+1)
		out = append(out, item)
		return append(out, s...)
	}
}

// RemoveWhere drops every element matching pred.
func RemoveWhere[T any](pred func(T) bool) func([]T) []T {
	return func(s []T) []T {
		out := make([]T, 0, len(s))
		for _, v := range s {
			if !pred(v) {
				out = append(out, v)
			}
		}
		return out
	}
}

// MapWhere replaces each element matching pred with fn(element).
func MapWhere[T any](pred func(T) bool, fn func(T) T) func([]T) []T {
	return func(s []T) []T {
		out := make([]T, len(s))
		for i, v := range s {
			if pred(v) {
				v = fn(v)
			}
			out[i] = v
		}
		return out
	}
}

// InsertAt puts item back at index i, clamped to the slice bounds.
func InsertAt[T any](i int, item T) func([]T) []T {
	return func(s []T) []T {
		i := max(0, min(i, len(s)))
		out := make([]T, 0, len(s)+1)
		out = append(out, s[:i]...)
		out = append(out, item)
		return append(out, s[i:]...)
	}
}

// Reinsert undoes the removal of snapshot[i]. The element goes back before
// its old successor, or after its old predecessor when the successor is gone,
// so entries added or removed in the meantime do not shift it. With both
// neighbours gone it falls back to InsertAt(i).
func Reinsert[T any, K comparable](snapshot []T, i int, key func(T) K) func([]T) []T {
	item := snapshot[i]
	find := func(s []T, k K) int {
		for j, v := range s {
			if key(v) == k {
				return j
			}
		}
		return -1
	}
	return func(s []T) []T {
		if i+1 < len(snapshot) {
			if j := find(s, key(snapshot[i+1])); j >= 0 {
				return InsertAt(j, item)(s)
			}
		}
		if i > 0 {
			if j := find(s, key(snapshot[i-1])); j >= 0 {
				return InsertAt(j+1, item)(s)
			}
		}
		return InsertAt(i, item)(s)
	}
}
