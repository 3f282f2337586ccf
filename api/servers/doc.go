/*
Package servers implements the enclave protocol server.

The server listens on a vsock port accepting any context id. When vsock is
not available (development outside of an enclave) it falls back to a TCP
listener on the loopback interface.

# Connection Lifecycle

Every accepted connection is served by its own goroutine:

 1. read until the peer half-closes or the read idle timeout passes
 2. hand the bytes to the request handler as one JSON document
 3. write the JSON response and close

A request larger than the configured limit is answered with an error
response without being decoded. Panics while serving a connection are
recovered and reported to the peer as a server error.

# Server Lifecycle

New creates the listener, RunInBackground starts accepting, and Shutdown
stops accepting and waits for in-flight connections up to the graceful
shutdown duration.
*/
package servers
