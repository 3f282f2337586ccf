//go:build !(linux && (amd64 || arm64))

package nsm

import "fmt"

// IoctlDevice is unavailable on this platform; the Nitro driver only exists
// on 64-bit Linux enclaves.
type IoctlDevice struct {
	Path string
}

func NewIoctlDevice(path string) *IoctlDevice {
	if path == "" {
		path = DefaultDevicePath
	}
	return &IoctlDevice{Path: path}
}

func (d *IoctlDevice) Request([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: unsupported platform", ErrDeviceNotFound)
}
