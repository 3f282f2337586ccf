/*
Package clients provides the host-side client of the enclave proof service.

EnclaveClient opens one connection per request, writes the JSON request,
half-closes its side and reads the response until the enclave closes the
connection. It can reach the enclave directly over vsock or through the
bridge over TCP.

# Operations

  - Health: liveness probe of the enclave server
  - Prove: proof generation for a registered circuit
  - Attestation: attestation document over a proof digest

Prove and Attestation return *ResponseError when the enclave answers with an
error response.
*/
package clients
