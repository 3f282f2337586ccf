package interfaces

import "errors"

// ErrAttestationUnavailable is returned when the attestation device is not
// present in the running environment.
var ErrAttestationUnavailable = errors.New("attestation device not available")

// AttestationType identifies the hardware backing an attestation document.
type AttestationType string

const (
	NitroAttestation AttestationType = "nitro"
	TDXAttestation   AttestationType = "tdx"
	DummyAttestation AttestationType = "dummy"
	NoAttestation    AttestationType = "none"
)

// AttestationProvider requests attestation documents from a TEE device.
type AttestationProvider interface {
	AttestationType() AttestationType

	// Attest returns a signed document binding userData and nonce (either
	// may be empty). Returns ErrAttestationUnavailable if the device is absent.
	Attest(userData, nonce []byte) ([]byte, error)
}

// DocumentAttester returns an attestation document, or nil when none could
// be obtained. Implementations never fail the caller.
type DocumentAttester interface {
	Document(userData, nonce []byte) []byte
}
