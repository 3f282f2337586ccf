package nsm

import (
	"errors"
	"fmt"
)

const (
	// DefaultDevicePath is where the Nitro hypervisor exposes the NSM.
	DefaultDevicePath = "/dev/nsm"

	// ResponseBufferSize bounds the response. Attestation documents are
	// typically 3-5 KiB.
	ResponseBufferSize = 16 * 1024

	// IoctlRequestCode is _IOWR(0x0A, 0, 32): direction read|write (3<<30),
	// size 32 (32<<16), type 0x0A (0x0A<<8), number 0.
	IoctlRequestCode = 0xC0200A00
)

var (
	// ErrDeviceNotFound means the NSM device file does not exist, the normal
	// case outside of an enclave.
	ErrDeviceNotFound = errors.New("nsm device not found")

	// ErrEmptyResponse means the driver reported a zero-length response.
	ErrEmptyResponse = errors.New("nsm returned an empty response")

	// ErrUnexpectedResponse means the response decoded but had neither the
	// success nor the error shape.
	ErrUnexpectedResponse = errors.New("unexpected nsm response")
)

// Device submits one raw request to the security module and returns the raw
// response.
type Device interface {
	Request(req []byte) ([]byte, error)
}

// DeviceError is an error envelope returned by the security module itself.
type DeviceError struct {
	// Code is the decoded error descriptor, opaque to this package.
	Code any
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("nsm returned error: %v", e.Code)
}
