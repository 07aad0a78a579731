package helpers

// BoolPointer returns a pointer to the given bool value. Response envelopes
// distinguish "field absent" from "field false" with *bool fields, and tests
// need literals for both.
func BoolPointer(b bool) *bool {
	return &b
}
