// Package nsm talks to the AWS Nitro Security Module from inside an enclave.
//
// The module is exposed as the /dev/nsm misc device. Every exchange is a
// single ioctl carrying a CBOR-encoded request buffer and a fixed-size
// response buffer; the driver writes the real response length back into the
// control structure.
//
// Device is the narrow request(bytes) -> bytes seam. IoctlDevice implements
// it against the kernel driver; everything above it (Client) only deals with
// CBOR envelopes and never sees the binary control structure.
//
// Each call opens, uses and closes the device. No state is held between calls,
// so concurrent requests are serialized by the driver, not by this package.
package nsm
