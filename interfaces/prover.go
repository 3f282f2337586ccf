package interfaces

import "context"

// ProofRequest is the input of one proof pipeline run.
type ProofRequest struct {
	RequestID string
	CircuitID string

	// Inputs are decimal field values, used only when ProverToml is empty.
	Inputs []string

	// ProverToml is written verbatim as the witness tool input when set.
	ProverToml string
}

// ProofResult holds hex-encoded (0x-prefixed) proof material.
type ProofResult struct {
	Proof        string
	PublicInputs []string

	// AttestationDocument is the raw document binding the proof digest,
	// nil when no attestation device was available.
	AttestationDocument []byte
}

// ProofGenerator runs the proof pipeline for registered circuits.
type ProofGenerator interface {
	GenerateProof(ctx context.Context, req ProofRequest) (*ProofResult, error)
}
