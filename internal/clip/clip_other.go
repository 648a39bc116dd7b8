//go:build !darwin && !linux && !windows

package clip

// New returns a no-op backend; there is no supported clipboard here.
func New(_ Format) Access {
	return headlessBackend{}
}
