// Package ptr holds small pointer helpers for building partial updates.
package ptr

import "time"

// To returns a pointer to v.
func To[T any](v T) *T { return &v }

// IfNonEmpty returns &s when s is non-empty, else nil.
func IfNonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IfTrue returns &b when b is true, else nil.
func IfTrue(b bool) *bool {
	if !b {
		return nil
	}
	return &b
}

// TimeOrNil returns &t when t is non-zero, else nil.
func TimeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
