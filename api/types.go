package api

import "encoding/json"

// Request types.
const (
	RequestHealth      = "health"
	RequestProve       = "prove"
	RequestAttestation = "attestation"
)

// Response types.
const (
	ResponseHealth      = "health"
	ResponseProof       = "proof"
	ResponseAttestation = "attestation"
	ResponseError       = "error"
)

// Request is the single JSON document a client sends per connection. Type
// selects the variant; fields of other variants are ignored.
type Request struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`

	// prove
	CircuitID  string   `json:"circuitId,omitempty"`
	Inputs     []string `json:"inputs,omitempty"`
	ProverToml string   `json:"proverToml,omitempty"`

	// attestation, hex digest with or without 0x
	ProofHash string `json:"proofHash,omitempty"`
}

// Response is the single JSON document the enclave writes back.
type Response struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`

	// health
	Status string `json:"status,omitempty"`

	// proof
	Proof        string   `json:"proof,omitempty"`
	PublicInputs []string `json:"publicInputs,omitempty"`

	// proof, attestation. Raw bytes, base64 on the wire.
	AttestationDocument []byte `json:"attestationDocument,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// proofResponse forces publicInputs onto the wire even when empty.
type proofResponse struct {
	Type                string   `json:"type"`
	RequestID           string   `json:"requestId"`
	Proof               string   `json:"proof"`
	PublicInputs        []string `json:"publicInputs"`
	AttestationDocument []byte   `json:"attestationDocument,omitempty"`
}

// MarshalJSON emits exactly the fields of the response variant.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Type == ResponseProof {
		pi := r.PublicInputs
		if pi == nil {
			pi = []string{}
		}
		return json.Marshal(proofResponse{
			Type:                r.Type,
			RequestID:           r.RequestID,
			Proof:               r.Proof,
			PublicInputs:        pi,
			AttestationDocument: r.AttestationDocument,
		})
	}
	type plain Response
	return json.Marshal(plain(r))
}

// IsError reports whether the response is an error response.
func (r *Response) IsError() bool {
	return r.Type == ResponseError
}

func NewErrorResponse(requestID string, msg string) *Response {
	return &Response{Type: ResponseError, RequestID: requestID, Error: msg}
}
