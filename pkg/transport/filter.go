package transport

import "strings"

// Filter selects resource ids during connect.
type Filter func(id string) bool

// Contains matches ids containing substr, ignoring case. An empty substr
// matches everything.
func Contains(substr string) Filter {
	substr = strings.ToLower(substr)
	return func(id string) bool {
		return strings.Contains(strings.ToLower(id), substr)
	}
}

// Exact matches one id, ignoring case.
func Exact(id string) Filter {
	return func(s string) bool {
		return strings.EqualFold(s, id)
	}
}

// Any matches ids accepted by at least one of filters.
func Any(filters ...Filter) Filter {
	return func(id string) bool {
		for _, f := range filters {
			if f != nil && f(id) {
				return true
			}
		}
		return false
	}
}
