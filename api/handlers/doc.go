/*
Package handlers implements request processing for the enclave proof service.

Handler turns one raw request document into one response. It never returns
an error: every failure, including undecodable input, becomes an error
response carrying the request id when it can be recovered.

# Request Types

  - health: answers {"status":"ok"} without touching any other component
  - prove: validates circuitId and inputs, then runs the proof pipeline
  - attestation: requests a document over the decoded proofHash

Proof pipeline errors are reported with their message. Attestation failures
inside a prove request are not errors; the proof is returned without a
document. An explicit attestation request without an available document is
an error.
*/
package handlers
