package utils

// Ptr returns a pointer to a copy of v. Use it for optional timestamps so a
// stored record never aliases a local that is reused for other fields.
func Ptr[T any](v T) *T {
	return &v
}
