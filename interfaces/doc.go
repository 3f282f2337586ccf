// Package interfaces defines the contracts shared between the enclave proof
// service components, separating interface definitions from implementations.
//
// # Proof Generation
//
// ProofGenerator: Runs the witness/prover tool pipeline for a registered
// circuit and returns hex-encoded proof material.
//
// # Attestation
//
// AttestationProvider: Produces a hardware-signed attestation document that
// binds caller-supplied bytes (usually a proof digest).
//
// DocumentAttester: The non-fatal policy wrapper used by request handlers.
// It returns nil when no document could be obtained instead of an error.
//
// # Errors
//
// ErrAttestationUnavailable is returned by providers when the attestation
// device does not exist in the running environment. This is an expected
// condition outside of enclaves.
package interfaces
