//go:build linux && (amd64 || arm64)

package nsm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawMessage mirrors the driver's control structure on 64-bit Linux:
//
//	offset  0  u64 request buffer address
//	offset  8  u32 request length
//	offset 12  u32 padding
//	offset 16  u64 response buffer address
//	offset 24  u32 response length (in: capacity, out: bytes written)
//	offset 28  u32 padding
//
// The pointer fields are 8 bytes on both supported architectures and keep
// the buffers visible to the garbage collector for the duration of the call.
type rawMessage struct {
	request     *byte
	requestLen  uint32
	_           uint32
	response    *byte
	responseLen uint32
	_           uint32
}

// Fails to compile if the layout drifts from 32 bytes.
var _ [32]byte = [unsafe.Sizeof(rawMessage{})]byte{}

// IoctlDevice is the kernel-backed Device.
type IoctlDevice struct {
	Path string
}

// NewIoctlDevice returns a device for path, DefaultDevicePath when empty.
func NewIoctlDevice(path string) *IoctlDevice {
	if path == "" {
		path = DefaultDevicePath
	}
	return &IoctlDevice{Path: path}
}

// Request opens the device, performs one ioctl and closes the device.
func (d *IoctlDevice) Request(req []byte) ([]byte, error) {
	if len(req) == 0 {
		return nil, errors.New("empty nsm request")
	}

	if _, err := os.Stat(d.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, d.Path)
		}
		return nil, fmt.Errorf("could not stat nsm device: %w", err)
	}

	fd, err := unix.Open(d.Path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open nsm device: %w", err)
	}
	defer unix.Close(fd)

	resp := make([]byte, ResponseBufferSize)
	msg := rawMessage{
		request:     &req[0],
		requestLen:  uint32(len(req)),
		response:    &resp[0],
		responseLen: uint32(len(resp)),
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(IoctlRequestCode), uintptr(unsafe.Pointer(&msg)))
	runtime.KeepAlive(req)
	runtime.KeepAlive(resp)
	if errno != 0 {
		return nil, fmt.Errorf("nsm ioctl failed: %w", errno)
	}

	n := msg.responseLen
	if n == 0 {
		return nil, ErrEmptyResponse
	}
	if int(n) > len(resp) {
		return nil, fmt.Errorf("nsm response length %d exceeds buffer size %d", n, len(resp))
	}
	return resp[:n], nil
}
