//go:build !windows

package pe

// CurrentImage is only available where the process image is a PE file.
func CurrentImage() (*Image, error) {
	return nil, ErrUnsupported
}
