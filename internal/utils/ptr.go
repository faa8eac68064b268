package utils

func Ptr[T any](v T) *T { return &v }

// Deref returns the value behind p or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
