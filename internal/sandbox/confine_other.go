//go:build !linux

package sandbox

// ConfineAvailable reports whether Confine can restrict processes on this
// platform.
const ConfineAvailable = false

// Confine is unavailable outside Linux.
func Confine(c Confinement) error {
	return ErrConfinementUnsupported
}
