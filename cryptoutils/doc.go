// Package cryptoutils provides attestation document providers for the
// enclave proof service.
//
// # Providers
//
// NitroProvider requests documents from the AWS Nitro Security Module
// through package nsm. It is the default in production images.
//
// TDXProvider produces Intel TDX quotes through the configfs-tsm report
// interface or the legacy TDX guest device.
//
// DummyProvider returns a deterministic, unsigned placeholder for local
// development. NoneProvider always reports the device as unavailable.
//
// # Policy
//
// Attester wraps a provider with the service's non-fatal policy: device
// absence, device failures and panics all yield a nil document and a log
// line. Callers that must fail on a missing document check for nil.
package cryptoutils
