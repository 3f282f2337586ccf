/*
Package api defines the wire protocol of the enclave proof service.

Each connection carries exactly one JSON request document followed by
exactly one JSON response document. The client signals the end of its
request by half-closing the connection; a server that sees no data for the
read idle timeout treats the request as complete.

# Requests

	{"type":"health","requestId":"1"}
	{"type":"prove","requestId":"2","circuitId":"coinbase_attestation","proverToml":"..."}
	{"type":"prove","requestId":"3","circuitId":"coinbase_attestation","inputs":["1","2"]}
	{"type":"attestation","requestId":"4","proofHash":"0xab..."}

# Responses

	{"type":"health","requestId":"1","status":"ok"}
	{"type":"proof","requestId":"2","proof":"0x...","publicInputs":["0x..."],"attestationDocument":"<base64>"}
	{"type":"attestation","requestId":"4","attestationDocument":"<base64>"}
	{"type":"error","requestId":"3","error":"..."}

The requestId of a response always equals the requestId of its request, or
is empty when the request could not be decoded.

The subpackages are:

1. handlers - decoding, validation and dispatch of requests
2. servers - the vsock listener and connection lifecycle
3. clients - the host-side client
*/
package api
