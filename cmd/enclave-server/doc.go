// Package main (cmd/enclave-server) runs the proof service inside a Nitro
// enclave.
//
// The server listens on vsock (port 5000 by default) and answers health,
// prove and attestation requests. Outside of an enclave it falls back to a
// TCP listener on 127.0.0.1:15000 so it can be exercised locally.
//
// Circuit artifacts are read from CIRCUITS_DIR, laid out as
// <dir>/target/<bytecode> and <dir>/target/<vk> per circuit. The built-in
// circuit table can be replaced with a TOML manifest:
//
//	[[circuit]]
//	id = "coinbase_attestation"
//	dir = "coinbase-attestation"
//	bytecode = "coinbase_attestation.json"
//	vk = "vk/vk"
//
// All configuration is available as flags and environment variables. Logs go
// to stderr only; the enclave has no persistent disk.
package main
