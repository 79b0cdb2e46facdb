// Package dedupe provides order-preserving de-duplication helpers.
package dedupe

import "strings"

// Values removes repeated elements, keeping the first occurrence of each.
// Order is preserved.
//
// Example:
//
//	Values([]int64{5, 7, 5, 3, 7})
//	// Returns: []int64{5, 7, 3}
func Values[T comparable](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}

// Trimmed trims whitespace from each element, drops empty ones and removes
// duplicates. Useful for comma-separated config lists.
//
// Example:
//
//	Trimmed([]string{" broker-1:9092", "", "broker-1:9092 ", "broker-2:9092"})
//	// Returns: []string{"broker-1:9092", "broker-2:9092"}
func Trimmed(values []string) []string {
	if len(values) == 0 {
		return values
	}

	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return Values(trimmed)
}
