// Package registry holds the circuit registry: the fixed table mapping a
// canonical circuit identifier to its on-disk artifacts.
//
// The registry is built once at process start, either from the built-in
// defaults or from a TOML manifest, and is read-only afterwards. Lookups need
// no locking. Membership in the registry is the only validation applied to a
// caller-supplied circuit identifier.
//
// # Filesystem Layout
//
// Each circuit lives in its own directory under the base directory:
//
//	<base>/<dir>/Nargo.toml          (optional, package manifest)
//	<base>/<dir>/src/                (optional, circuit sources)
//	<base>/<dir>/target/<bytecode>   (compiled circuit)
//	<base>/<dir>/target/<vk>         (verification key)
//
// # Manifest Format
//
//	[[circuit]]
//	id = "coinbase_attestation"
//	dir = "coinbase-attestation"
//	bytecode = "coinbase_attestation.json"
//	vk = "vk/vk"
//	package = "coinbase_attestation" # optional, defaults to id
package registry
