// Package bridge relays TCP connections on the parent instance to the
// enclave's vsock listener.
//
// Each inbound connection carries exactly one exchange. The bridge reads the
// inbound request until the client half-closes or goes idle, forwards it to
// a fresh outbound connection, half-closes that connection and copies the
// whole response back. Payloads are never interpreted.
package bridge
