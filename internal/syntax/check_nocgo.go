//go:build !cgo

package syntax

// Supported is always false without CGo.
func Supported(language string) bool {
	return false
}

// Check always fails with ErrUnsupported without CGo.
func Check(source, language string) ([]SyntaxError, error) {
	return nil, ErrUnsupported
}
